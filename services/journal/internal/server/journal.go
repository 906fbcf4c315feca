package server

import (
	"net/http"
	"strings"

	"dropjournal/services/journal/internal/app"
)

type createEntryRequest struct {
	PromptID        *string `json:"promptId"`
	EntryDate       string  `json:"entryDate"`
	InitialResponse string  `json:"initialResponse"`
	MoodScore       *int    `json:"moodScore"`
}

type updateEntryRequest struct {
	InitialResponse *string `json:"initialResponse"`
	MoodScore       *int    `json:"moodScore"`
	IsFavorite      *bool   `json:"isFavorite"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type tagRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleTodayPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.TodayPrompt(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.app.CreateEntry(r.Context(), user, app.CreateEntryInput{
		PromptID:        req.PromptID,
		EntryDate:       req.EntryDate,
		InitialResponse: req.InitialResponse,
		MoodScore:       req.MoodScore,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleListEntries lists the user's entries, or returns the single entry for
// ?date=YYYY-MM-DD.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		detail, err := s.app.GetEntryByDate(r.Context(), user, date)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}
	entries, err := s.app.ListEntries(r.Context(), user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	detail, err := s.app.GetEntry(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.app.UpdateEntry(r.Context(), user, r.PathValue("id"), app.EntryPatch{
		InitialResponse: req.InitialResponse,
		MoodScore:       req.MoodScore,
		IsFavorite:      req.IsFavorite,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	conv, err := s.app.StartConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	conv, err := s.app.GetConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	conv, err := s.app.SendMessage(r.Context(), user, r.PathValue("id"), req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListEntryTags(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	tags, err := s.app.ListEntryTags(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleAddEntryTag(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	detail, err := s.app.AddEntryTag(r.Context(), user, r.PathValue("id"), req.Name)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (s *Server) handleRemoveEntryTag(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := s.app.RemoveEntryTag(r.Context(), user, r.PathValue("id"), r.PathValue("tagId")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.app.ListTags(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleEntriesByTag(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	res, err := s.app.EntriesByTag(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	res, err := s.app.ExportJournal(r.Context(), user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "journal.export", "success", "user_id", user.ID, "entries", res.EntryCount)
	writeJSON(w, http.StatusCreated, res)
}
