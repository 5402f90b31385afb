package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/internal/application/stock"
	"github.com/guilhermemacielvieira-a11y/montex-erp-v5-sub004/pkg/logger"
)

// WSHandler empurra snapshots publicados para clientes WebSocket (páginas de
// UI que exibem estoque em tempo real). Um assinante por conexão; snapshot
// corrente entregue imediatamente no connect.
type WSHandler struct {
	broadcaster *stock.Broadcaster
	log         *logger.Logger
}

// NewWSHandler constrói o handler.
func NewWSHandler(broadcaster *stock.Broadcaster, log *logger.Logger) *WSHandler {
	return &WSHandler{broadcaster: broadcaster, log: log}
}

// Upgrade rejeita requisições que não pedem upgrade de WebSocket.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream é o loop da conexão: assina o broadcaster e escreve cada snapshot
// publicado. Um goroutine de leitura detecta a desconexão do cliente e
// cancela a assinatura; assinante lento recebe só o estado mais novo
// (política do broadcaster).
func (h *WSHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		snapshots, cancel := h.broadcaster.Subscribe()
		defer cancel()

		h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("assinante websocket conectado")

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				if err := conn.WriteJSON(toSnapshotResponse(snap)); err != nil {
					h.log.Debug().Err(err).Msg("assinante websocket desconectado na escrita")
					return
				}
			case <-closed:
				h.log.Debug().Msg("assinante websocket desconectado")
				return
			}
		}
	})
}
