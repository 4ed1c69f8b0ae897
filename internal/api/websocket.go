package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is one frame on the normalize stream: a consensus call
// as each group resolves, then a closing summary.
type streamMessage struct {
	Type    string                `json:"type"`
	Call    *domain.ConsensusCall `json:"call,omitempty"`
	Summary *streamSummary        `json:"summary,omitempty"`
	Error   *domain.BatchError    `json:"error,omitempty"`
}

type streamSummary struct {
	RunID            string                   `json:"run_id"`
	Calls            int                      `json:"calls"`
	RecordsIn        int                      `json:"records_in"`
	RecordsValid     int                      `json:"records_valid"`
	ValidationErrors []domain.ValidationError `json:"validation_errors,omitempty"`
	TableVersions    domain.ReferenceVersions `json:"table_versions"`
}

// handleNormalizeStream upgrades the connection to a websocket, reads one
// batch message, and streams consensus calls back as groups resolve.
func (s *Server) handleNormalizeStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBatchBytes)
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.WithError(err).Debug("Websocket read failed")
		return
	}

	records, failures, err := validateStreamBatch(s.engine, data)
	if err != nil {
		var batchErr *domain.BatchError
		if !errors.As(err, &batchErr) {
			batchErr = domain.NewBatchError(domain.ErrInternalServer, "batch processing failed", "")
		}
		conn.WriteJSON(streamMessage{Type: "error", Error: batchErr})
		return
	}

	result, err := s.engine.ProcessRecordsStream(c.Request.Context(), records, func(call domain.ConsensusCall) {
		if writeErr := conn.WriteJSON(streamMessage{Type: "call", Call: &call}); writeErr != nil {
			s.logger.WithError(writeErr).Debug("Websocket write failed")
		}
	})
	if err != nil {
		conn.WriteJSON(streamMessage{Type: "error", Error: domain.NewBatchError(
			domain.ErrInternalServer, "batch processing failed", "")})
		return
	}

	conn.WriteJSON(streamMessage{Type: "summary", Summary: &streamSummary{
		RunID:            result.RunID,
		Calls:            len(result.Calls),
		RecordsIn:        result.RecordsIn + len(failures),
		RecordsValid:     result.RecordsValid,
		ValidationErrors: failures,
		TableVersions:    result.TableVersions,
	}})

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// validateStreamBatch runs batch validation through the engine's
// validator so streamed and buffered submissions share one contract.
func validateStreamBatch(engine *service.EngineService, data []byte) ([]domain.ToolCallRecord, []domain.ValidationError, error) {
	return engine.Validator().ValidateBatch(data)
}
