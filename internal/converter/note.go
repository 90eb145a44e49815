package converter

import (
	"notekeeper/internal/model"
	"notekeeper/internal/repository"
)

// RecordToNote конвертирует запись хранилища в доменную модель заметки
func RecordToNote(rec repository.Record) model.Note {
	if rec == nil {
		return model.Note{}
	}

	return model.Note{
		ID:      rec[repository.FieldID],
		OwnerID: rec[repository.FieldOwnerID],
		Name:    rec[repository.FieldName],
		Body:    rec[repository.FieldBody],
	}
}

// NoteToRecord конвертирует доменную модель заметки в запись хранилища (без id)
func NoteToRecord(note model.Note) repository.Record {
	return repository.Record{
		repository.FieldOwnerID: note.OwnerID,
		repository.FieldName:    note.Name,
		repository.FieldBody:    note.Body,
	}
}

// RecordsToNotes конвертирует слайс записей в слайс заметок
func RecordsToNotes(records []repository.Record) []model.Note {
	notes := make([]model.Note, len(records))
	for i, rec := range records {
		notes[i] = RecordToNote(rec)
	}

	return notes
}

// RecordsToSummaries конвертирует проекцию {id, name} в краткие представления
func RecordsToSummaries(records []repository.Record) []model.NoteSummary {
	out := make([]model.NoteSummary, len(records))
	for i, rec := range records {
		out[i] = model.NoteSummary{ID: rec[repository.FieldID], Name: rec[repository.FieldName]}
	}

	return out
}
