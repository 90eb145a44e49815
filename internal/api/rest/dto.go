package rest

import "notekeeper/internal/model"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountPatchRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccountID string `json:"account_id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type noteRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

type noteResponse struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Body    string `json:"body"`
}

type noteSummaryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listNotesResponse struct {
	Notes []noteResponse `json:"notes"`
}

type listNamesResponse struct {
	Notes []noteSummaryResponse `json:"notes"`
}

type removedResponse struct {
	Removed int64 `json:"removed"`
}

type errorResponse struct {
	Code    int32    `json:"code"`
	Message string   `json:"message"`
	Failed  []string `json:"failed,omitempty"`
}

func toAccountResponse(a model.Account) accountResponse {
	return accountResponse{ID: a.ID, Email: a.Email}
}

func toNoteResponse(n model.Note) noteResponse {
	return noteResponse{ID: n.ID, OwnerID: n.OwnerID, Name: n.Name, Body: n.Body}
}

func toNotesResponse(notes []model.Note) listNotesResponse {
	out := listNotesResponse{Notes: make([]noteResponse, len(notes))}
	for i, n := range notes {
		out.Notes[i] = toNoteResponse(n)
	}
	return out
}

func toNamesResponse(summaries []model.NoteSummary) listNamesResponse {
	out := listNamesResponse{Notes: make([]noteSummaryResponse, len(summaries))}
	for i, s := range summaries {
		out.Notes[i] = noteSummaryResponse{ID: s.ID, Name: s.Name}
	}
	return out
}
