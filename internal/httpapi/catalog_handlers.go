package httpapi

import (
	"net/http"

	"github.com/hablaconmigo/backend/internal/catalog"
)

func (r *Router) handleListMissions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"missions": catalog.Missions(),
	})
}

func (r *Router) handleGetProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Progress())
}

// handleListExercises returns the flashcards without their answers
func (r *Router) handleListExercises(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"exercises": r.cards.Cards(),
	})
}
