package converter

import (
	"notekeeper/internal/model"
	"notekeeper/internal/repository"
)

// RecordToAccount конвертирует запись хранилища в модель аккаунта
func RecordToAccount(rec repository.Record) model.Account {
	if rec == nil {
		return model.Account{}
	}

	return model.Account{
		ID:           rec[repository.FieldID],
		Email:        rec[repository.FieldEmail],
		PasswordHash: rec[repository.FieldPasswordHash],
	}
}

// AccountToRecord конвертирует модель аккаунта в запись хранилища (без id)
func AccountToRecord(account model.Account) repository.Record {
	return repository.Record{
		repository.FieldEmail:        account.Email,
		repository.FieldPasswordHash: account.PasswordHash,
	}
}
