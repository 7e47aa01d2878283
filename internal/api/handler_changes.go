package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/changefeed"
)

// keepAliveInterval bounds how long an idle change stream stays silent.
const keepAliveInterval = 25 * time.Second

// ownerlessTables have no per-user rows and are visible to everyone.
var ownerlessTables = map[string]bool{
	changefeed.TableMachines: true,
}

var knownTables = map[string]bool{
	changefeed.TableBookings:      true,
	changefeed.TableOrders:        true,
	changefeed.TableMachines:      true,
	changefeed.TableProfiles:      true,
	changefeed.TableWallets:       true,
	changefeed.TableTransactions:  true,
	changefeed.TableNotifications: true,
}

// Changes streams change signals for one table as Server-Sent Events.
// Students only see events for their own rows; admins see every event.
func (h *Handler) Changes(c *gin.Context) {
	table := c.Query("table")
	if !knownTables[table] {
		badRequest(c, "unknown table")
		return
	}

	filter := changefeed.Filter{Table: table}
	if id := h.identity(c); !id.IsAdmin() && !ownerlessTables[table] {
		filter.UserID = id.UserID
	}

	sub := h.feed.Subscribe(filter)
	defer sub.Close()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"table": table})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("change", e)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": h.now().UTC()})
			return true
		}
	})
}
