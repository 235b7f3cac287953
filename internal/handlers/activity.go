package handlers

import (
	"context"
	"net/http"

	"github.com/redeclipse/stats-api/internal/models"
)

type histogramFunc func(ctx context.Context, days int) (*models.ActivityHistogram, error)

// histogram serves one activity fold. A days value of 0 picks the fold's default window.
func (h *Handler) histogram(fold histogramFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := h.parseWindow(r, 0)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		res, err := fold(r.Context(), q.Days)
		h.respond(w, r, res, err)
	}
}

// ActivityHours averages concurrent players per hour of day
// @Summary Activity by hour of day
// @Tags Activity
// @Produce json
// @Param days query int false "Lookback in days"
// @Success 200 {object} models.ActivityHistogram
// @Router /api/activity/hours [get]
func (h *Handler) ActivityHours(w http.ResponseWriter, r *http.Request) {
	h.histogram(h.activity.Hours)(w, r)
}

// ActivityWeekdays averages concurrent players per weekday
// @Summary Activity by weekday
// @Tags Activity
// @Produce json
// @Param days query int false "Lookback in days"
// @Success 200 {object} models.ActivityHistogram
// @Router /api/activity/weekdays [get]
func (h *Handler) ActivityWeekdays(w http.ResponseWriter, r *http.Request) {
	h.histogram(h.activity.Weekdays)(w, r)
}

// ActivityWeekdayHours averages concurrent players per hour of the week
// @Summary Activity by weekday and hour
// @Tags Activity
// @Produce json
// @Param days query int false "Lookback in days"
// @Success 200 {object} models.ActivityHistogram
// @Router /api/activity/weekdayhours [get]
func (h *Handler) ActivityWeekdayHours(w http.ResponseWriter, r *http.Request) {
	h.histogram(h.activity.WeekdayHours)(w, r)
}
