package httpapi

import (
	"context"
	"net/http"
	"strings"

	"wisefido-discharge-board/internal/discharge"
	"wisefido-discharge-board/internal/history"
	"wisefido-discharge-board/internal/indicators"
	"wisefido-discharge-board/internal/models"

	"go.uber.org/zap"
)

// BoardService read side served by BoardHandler (service.Board)
type BoardService interface {
	Current(ctx context.Context) (*models.DischargeBoard, error)
	Sorted(ctx context.Context, order discharge.Ordering) (*models.DischargeBoard, error)
	Indicators(ctx context.Context) (*indicators.Snapshot, error)
	History(ctx context.Context, from, to string) ([]indicators.Snapshot, error)
}

type BoardHandler struct {
	board  BoardService
	logger *zap.Logger
}

func NewBoardHandler(board BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{board: board, logger: logger}
}

// GetBoard cached board; ?sort=name|department|bed|expected&order=desc builds a live sorted copy.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy, order := q.Get("sort"), q.Get("order")

	var (
		b   *models.DischargeBoard
		err error
	)
	if sortBy == "" && order == "" {
		b, err = h.board.Current(r.Context())
	} else {
		b, err = h.board.Sorted(r.Context(), discharge.Ordering{
			Key:        discharge.ParseSortKey(sortBy),
			Descending: strings.EqualFold(order, "desc"),
		})
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(b))
}

func (h *BoardHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	snap, err := h.board.Indicators(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// GetHistory ?from=YYYY-MM-DD&to=YYYY-MM-DD, both optional
func (h *BoardHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	for _, day := range []string{from, to} {
		if day != "" && !history.ValidDay(day) {
			writeJSON(w, http.StatusBadRequest, Fail("dates must be YYYY-MM-DD"))
			return
		}
	}

	snaps, err := h.board.History(r.Context(), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if snaps == nil {
		snaps = []indicators.Snapshot{}
	}
	writeJSON(w, http.StatusOK, Ok(snaps))
}
