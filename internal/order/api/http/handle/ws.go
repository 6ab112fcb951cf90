package handle

import (
	"strings"

	"orderhub/internal/hub"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/xpkg/auth"
	"orderhub/internal/xpkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub        *hub.Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	mylog      logger.Logger
}

func NewWSHandler(h *hub.Hub, sendBuffer int, mylog logger.Logger) *WSHandler {
	return &WSHandler{
		hub:        h,
		upgrader:   hub.NewUpgrader(),
		sendBuffer: sendBuffer,
		mylog:      mylog,
	}
}

// CanJoin decides which topics an actor may listen on. Customers only
// hear about their own orders; staff and owners see the outlets they
// work at, system sees every outlet.
func CanJoin(actor lifecycle.Actor, topic string) bool {
	if actor.ID != "" && topic == lifecycle.UserTopic(actor.ID) {
		return true
	}
	outletID, ok := strings.CutPrefix(topic, lifecycle.OutletTopic(""))
	return ok && actor.ServesOutlet(outletID)
}

func (wh *WSHandler) Serve(c *gin.Context) {
	actor := auth.ActorFrom(c)
	conn, err := wh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.mylog.Action("ws_upgrade_failed").Error("Failed to upgrade connection", err)
		return
	}

	ws := hub.NewWSConn(conn, wh.hub, wh.sendBuffer, func(topic string) bool {
		return CanJoin(actor, topic)
	}, wh.mylog.With("actor", actor.String()))
	wh.mylog.Action("ws_connected").Debug("Websocket connected", "actor", actor.String())
	ws.Serve(c.Request.Context())
}
