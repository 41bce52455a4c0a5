package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/dexkeeper/recorder"
	"github.com/onnwee/dexkeeper/telemetry"
)

type recordingView struct {
	MessageID     string  `json:"message_id"`
	ChannelID     string  `json:"channel_id"`
	GuildID       string  `json:"guild_id,omitempty"`
	OwnerID       string  `json:"owner_id"`
	OwnerName     string  `json:"owner_name"`
	IDs           int     `json:"ids"`
	IdleSeconds   float64 `json:"idle_seconds"`
	TimeoutInSecs float64 `json:"timeout_in_seconds"`
}

// HandleStatus lists active recordings.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	active := h.engine.Active()
	views := make([]recordingView, 0, len(active))
	for _, st := range active {
		views = append(views, recordingView{
			MessageID:     st.Target.MessageID,
			ChannelID:     st.Target.ChannelID,
			GuildID:       st.Target.GuildID,
			OwnerID:       st.Owner.ID,
			OwnerName:     st.Owner.Name,
			IDs:           st.Count,
			IdleSeconds:   st.IdleFor.Seconds(),
			TimeoutInSecs: st.Remaining().Seconds(),
		})
	}
	cfg := h.engine.Config()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"active":                    len(views),
		"recordings":                views,
		"timeout_seconds":           cfg.Timeout.Seconds(),
		"inactivity_check_interval": cfg.CheckInterval.Seconds(),
		"ids_per_page":              cfg.PageSize,
	})
}

// HandleAdminStopRecording stops a recording as if its Stop button was pressed.
func (h *Handlers) HandleAdminStopRecording(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	by := recorder.Actor{ID: "admin", Name: "admin", Mention: "admin"}
	err := h.engine.Stop(r.Context(), messageID, by)
	if errors.Is(err, recorder.ErrNoSession) {
		http.Error(w, "no active recording", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("recording stopped via admin endpoint",
		slog.String("message_id", messageID), slog.String("component", "http"))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "stopped", "message_id": messageID})
}
