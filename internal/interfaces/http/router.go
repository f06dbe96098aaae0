package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-lotes/internal/application/auth"
	"github.com/jhoicas/pos-lotes/internal/application/catalog"
	"github.com/jhoicas/pos-lotes/internal/application/inventory"
	"github.com/jhoicas/pos-lotes/internal/application/layaway"
	"github.com/jhoicas/pos-lotes/internal/application/sales"
	"github.com/jhoicas/pos-lotes/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC       *auth.AuthUseCase
	ProductUC    *catalog.ProductUseCase
	CustomerUC   *catalog.CustomerUseCase
	Engine       *inventory.Engine
	Sales        *sales.SaleCoordinator
	Reservations *layaway.ReservationManager
	ExpiryScans  ExpiryScanEnqueuer // opcional
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	authHandler := NewAuthHandler(deps.AuthUC)
	adminOnly := RequireRole(entity.RoleAdmin)
	anyRole := RequireRole(entity.RoleAdmin, entity.RoleCajero)

	// Auth: login público, registro solo admin
	authGroup := api.Group("/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/register", AuthMiddleware(deps.JWTSecret), adminOnly, authHandler.Register)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret), anyRole)

	// Products: lectura para cualquier rol, escritura solo admin
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC, deps.Engine.Ledger)
	products.Get("/", productHandler.List)
	products.Post("/", adminOnly, productHandler.Create)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", adminOnly, productHandler.Update)
	products.Post("/:id/sync", adminOnly, productHandler.Sync)
	products.Get("/:id/lots", productHandler.Lots)

	// Lots
	lots := protected.Group("/lots")
	lotHandler := NewLotHandler(deps.Engine)
	lots.Post("/", adminOnly, lotHandler.Receive)
	lots.Get("/expiring", lotHandler.Expiring)
	lots.Post("/expiring/scan", adminOnly, NewJobHandler(deps.ExpiryScans).ScanExpiring)
	lots.Get("/sku/:sku", lotHandler.BySKU)
	lots.Post("/:id/restock", adminOnly, lotHandler.Restock)

	// Mermas y ajustes (admin)
	protected.Post("/inventory/deductions", adminOnly, lotHandler.Deductions)

	// Sales
	salesGroup := protected.Group("/sales")
	saleHandler := NewSaleHandler(deps.Sales)
	salesGroup.Get("/", saleHandler.List)
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Delete("/:id", adminOnly, saleHandler.Delete)
	salesGroup.Post("/:id/restore", adminOnly, saleHandler.Restore)
	salesGroup.Get("/:id/receipt", saleHandler.Receipt)

	// Reservations (apartados)
	reservations := protected.Group("/reservations")
	reservationHandler := NewReservationHandler(deps.Reservations)
	reservations.Post("/", reservationHandler.Create)
	reservations.Get("/:id", reservationHandler.GetByID)
	reservations.Post("/:id/payments", reservationHandler.AddPayment)
	reservations.Post("/:id/cancel", reservationHandler.Cancel)
	reservations.Post("/:id/convert", reservationHandler.Convert)

	// Customers
	customers := protected.Group("/customers")
	customerHandler := NewCustomerHandler(deps.CustomerUC)
	customers.Post("/", customerHandler.Create)
	customers.Get("/", customerHandler.List)
	customers.Get("/:id", customerHandler.GetByID)
	customers.Get("/:id/reservations", reservationHandler.ListByCustomer)
}
