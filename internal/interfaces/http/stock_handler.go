package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/dto"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/entity"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/domain/repository"
)

// StockHandler trata as requisições HTTP do motor de estoque.
type StockHandler struct {
	coordinator *stock.Coordinator
	broadcaster *stock.Broadcaster
	ledger      repository.LedgerStore
	items       repository.StockItemRepository
	pending     repository.PendingRepository
}

// NewStockHandler constrói o handler.
func NewStockHandler(
	coordinator *stock.Coordinator,
	broadcaster *stock.Broadcaster,
	ledger repository.LedgerStore,
	items repository.StockItemRepository,
	pending repository.PendingRepository,
) *StockHandler {
	return &StockHandler{
		coordinator: coordinator,
		broadcaster: broadcaster,
		ledger:      ledger,
		items:       items,
		pending:     pending,
	}
}

// RegisterConsumption godoc
// @Summary      Registrar consumo de produção (início de corte)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterConsumptionRequest  true  "item_code, quantity, production_ref, stage"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/consumptions [post]
func (h *StockHandler) RegisterConsumption(c *fiber.Ctx) error {
	var in dto.RegisterConsumptionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	ev := entity.ConsumptionEvent{
		ItemCode:      in.ItemCode,
		Quantity:      in.Quantity,
		ProductionRef: in.ProductionRef,
		Stage:         in.Stage,
	}
	if in.Timestamp != nil {
		ev.Timestamp = *in.Timestamp
	}
	rec, err := h.coordinator.RegisterConsumption(c.Context(), ev)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// RegisterEntry godoc
// @Summary      Registrar entrada manual (recebimento)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterEntryRequest  true  "item_code, quantity"
// @Success      201   {object}  dto.MovementResponse
// @Router       /api/stock/entries [post]
func (h *StockHandler) RegisterEntry(c *fiber.Ctx) error {
	var in dto.RegisterEntryRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	rec, err := h.coordinator.RegisterEntry(c.Context(), in.ItemCode, in.Quantity, in.SourceRef, in.Note)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// RegisterExit godoc
// @Summary      Registrar saída manual (requisição de material)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterExitRequest  true  "item_code, quantity"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/exits [post]
func (h *StockHandler) RegisterExit(c *fiber.Ctx) error {
	var in dto.RegisterExitRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	rec, err := h.coordinator.RegisterExit(c.Context(), in.ItemCode, in.Quantity, in.SourceRef, in.Note)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// RegisterAdjustment godoc
// @Summary      Registrar ajuste (delta assinado)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterAdjustmentRequest  true  "item_code, quantity_delta"
// @Success      201   {object}  dto.MovementResponse
// @Router       /api/stock/adjustments [post]
func (h *StockHandler) RegisterAdjustment(c *fiber.Ctx) error {
	var in dto.RegisterAdjustmentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	rec, err := h.coordinator.RegisterAdjustment(c.Context(), in.ItemCode, in.QuantityDelta, in.SourceRef, in.Note)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// RegisterCompensation godoc
// @Summary      Estornar um movimento commitado (movimento compensatório)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterCompensationRequest  true  "movement_id"
// @Success      201   {object}  dto.MovementResponse
// @Router       /api/stock/compensations [post]
func (h *StockHandler) RegisterCompensation(c *fiber.Ctx) error {
	var in dto.RegisterCompensationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	rec, err := h.coordinator.RegisterCompensation(c.Context(), in.MovementID, in.Note)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// GetSnapshot godoc
// @Summary      Snapshot publicado (projeções + KPI, versionado)
// @Tags         stock
// @Produce      json
// @Success      200  {object}  dto.SnapshotResponse
// @Router       /api/stock/snapshot [get]
func (h *StockHandler) GetSnapshot(c *fiber.Ctx) error {
	return c.JSON(toSnapshotResponse(h.broadcaster.Current()))
}

// GetKpi godoc
// @Summary      KPI agregado do snapshot publicado
// @Tags         stock
// @Produce      json
// @Success      200  {object}  dto.KpiResponse
// @Router       /api/stock/kpi [get]
func (h *StockHandler) GetKpi(c *fiber.Ctx) error {
	snap := h.broadcaster.Current()
	out := dto.KpiResponse{
		Version: snap.Version,
		Items:   []dto.ItemKpiResponse{},
	}
	if snap.Kpi != nil {
		out.GeneratedAt = snap.Kpi.GeneratedAt
		out.CountNormal = snap.Kpi.CountNormal
		out.CountLow = snap.Kpi.CountLow
		out.CountCritical = snap.Kpi.CountCritical
		out.CountZero = snap.Kpi.CountZero
		out.TotalValue = snap.Kpi.TotalValue
		for _, k := range snap.Kpi.Items {
			out.Items = append(out.Items, dto.ItemKpiResponse{
				ItemID:         k.ItemID,
				Code:           k.Code,
				Name:           k.Name,
				Unit:           k.Unit,
				QuantityOnHand: k.QuantityOnHand,
				Threshold:      k.Threshold,
				Status:         k.Status,
				Value:          k.Value,
			})
		}
	}
	return c.JSON(out)
}

// GetMovements godoc
// @Summary      Histórico de movimentos de um item (auditoria)
// @Tags         stock
// @Produce      json
// @Param        id      path   string  true   "ID do item"
// @Param        limit   query  int     false  "Página (padrão 50)"
// @Param        offset  query  int     false  "Deslocamento"
// @Param        from    query  string  false  "Início (RFC3339)"
// @Param        to      query  string  false  "Fim (RFC3339)"
// @Success      200  {array}  dto.MovementResponse
// @Router       /api/stock/items/{id}/movements [get]
func (h *StockHandler) GetMovements(c *fiber.Ctx) error {
	itemID := c.Params("id")
	item, err := h.items.GetByID(c.Context(), itemID)
	if err != nil {
		return h.writeError(c, err)
	}
	if item == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "item não encontrado"})
	}

	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginação inválida"})
	}
	page.DefaultPage()

	rng := repository.MovementRange{Limit: page.Limit, Offset: page.Offset}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
		}
		rng.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
		}
		rng.To = &t
	}

	movs, err := h.ledger.ListByItem(c.Context(), itemID, rng)
	if err != nil {
		return h.writeError(c, err)
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, toMovementResponse(m))
	}
	return c.JSON(fiber.Map{"total": len(out), "movements": out})
}

// GetPending godoc
// @Summary      Fila de movimentos pendentes de persistência (operador)
// @Tags         stock
// @Produce      json
// @Success      200  {array}  dto.PendingMovementResponse
// @Router       /api/stock/pending [get]
func (h *StockHandler) GetPending(c *fiber.Ctx) error {
	list, err := h.pending.List(c.Context())
	if err != nil {
		return h.writeError(c, err)
	}
	out := make([]dto.PendingMovementResponse, 0, len(list))
	for _, p := range list {
		out = append(out, dto.PendingMovementResponse{
			ID:            p.ID,
			ItemID:        p.Draft.ItemID,
			Kind:          p.Draft.Kind,
			QuantityDelta: p.Draft.QuantityDelta,
			SourceRef:     p.Draft.SourceRef,
			Attempts:      p.Attempts,
			LastError:     p.LastError,
			ParkedAt:      p.ParkedAt,
		})
	}
	return c.JSON(fiber.Map{"total": len(out), "pending": out})
}

// RetryPending godoc
// @Summary      Reprocessar um movimento estacionado
// @Tags         stock
// @Produce      json
// @Param        id  path  string  true  "ID do pendente"
// @Success      201  {object}  dto.MovementResponse
// @Router       /api/stock/pending/{id}/retry [post]
func (h *StockHandler) RetryPending(c *fiber.Ctx) error {
	rec, err := h.coordinator.RetryPending(c.Context(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(rec))
}

// GetReplenishmentList godoc
// @Summary      Sugestões de reposição (itens abaixo do mínimo)
// @Tags         stock
// @Produce      json
// @Success      200  {array}  dto.ReplenishmentSuggestionDTO
// @Router       /api/stock/replenishment-list [get]
func (h *StockHandler) GetReplenishmentList(c *fiber.Ctx) error {
	items, err := h.items.List(c.Context(), false)
	if err != nil {
		return h.writeError(c, err)
	}
	list := stock.SuggestReplenishment(h.broadcaster.Current(), items)
	return c.JSON(fiber.Map{"total": len(list), "replenishments": list})
}

// writeError mapeia erros de domínio para status HTTP. Movimento estacionado
// devolve 202: aceito mas pendente de sincronização — nunca "commitado".
func (h *StockHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "dados inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso não encontrado"})
	case errors.Is(err, domain.ErrItemArchived):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ITEM_ARCHIVED", Message: "item arquivado"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "estoque insuficiente"})
	case errors.Is(err, domain.ErrMovementParked):
		return c.Status(fiber.StatusAccepted).JSON(dto.ErrorResponse{Code: "SYNC_PENDING", Message: "movimento pendente de persistência"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func toMovementResponse(m *entity.MovementRecord) dto.MovementResponse {
	return dto.MovementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Sequence:      m.Sequence,
		Kind:          m.Kind,
		QuantityDelta: m.QuantityDelta,
		Timestamp:     m.Timestamp,
		SourceRef:     m.SourceRef,
		Note:          m.Note,
	}
}

func toSnapshotResponse(snap *stock.Snapshot) dto.SnapshotResponse {
	out := dto.SnapshotResponse{
		Version:     snap.Version,
		PublishedAt: snap.PublishedAt,
		Items:       []dto.ItemKpiResponse{},
		Projections: []dto.ProjectionResponse{},
	}
	for _, p := range snap.Projections {
		out.Projections = append(out.Projections, dto.ProjectionResponse{
			ItemID:              p.ItemID,
			QuantityOnHand:      p.QuantityOnHand,
			LastSequenceApplied: p.LastSequenceApplied,
			UpdatedAt:           p.UpdatedAt,
		})
	}
	if snap.Kpi != nil {
		for _, k := range snap.Kpi.Items {
			out.Items = append(out.Items, dto.ItemKpiResponse{
				ItemID:         k.ItemID,
				Code:           k.Code,
				Name:           k.Name,
				Unit:           k.Unit,
				QuantityOnHand: k.QuantityOnHand,
				Threshold:      k.Threshold,
				Status:         k.Status,
				Value:          k.Value,
			})
		}
		out.CountNormal = snap.Kpi.CountNormal
		out.CountLow = snap.Kpi.CountLow
		out.CountCritical = snap.Kpi.CountCritical
		out.CountZero = snap.Kpi.CountZero
		out.TotalValue = snap.Kpi.TotalValue
	}
	return out
}
