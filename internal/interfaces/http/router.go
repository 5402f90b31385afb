package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Stock *StockHandler
	WS    *WSHandler
}

// Router registra as rotas da API do motor de estoque.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Escritas: todas passam pelo coordenador (único ponto de entrada)
	st := api.Group("/stock")
	st.Post("/consumptions", deps.Stock.RegisterConsumption)
	st.Post("/entries", deps.Stock.RegisterEntry)
	st.Post("/exits", deps.Stock.RegisterExit)
	st.Post("/adjustments", deps.Stock.RegisterAdjustment)
	st.Post("/compensations", deps.Stock.RegisterCompensation)

	// Leituras: nunca bloqueiam o escritor (snapshot publicado)
	st.Get("/snapshot", deps.Stock.GetSnapshot)
	st.Get("/kpi", deps.Stock.GetKpi)
	st.Get("/items/:id/movements", deps.Stock.GetMovements)
	st.Get("/replenishment-list", deps.Stock.GetReplenishmentList)

	// Fila de pendências (operador)
	st.Get("/pending", deps.Stock.GetPending)
	st.Post("/pending/:id/retry", deps.Stock.RetryPending)

	// Sincronização em tempo real entre páginas
	st.Get("/ws", deps.WS.Upgrade, deps.WS.Stream())
}
