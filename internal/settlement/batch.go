package settlement

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrBusy: a settlement start is already in flight
	ErrBusy = errors.New("a payout process is already active")
	// ErrNotFound: no unpaid record for that identity in the batch
	ErrNotFound = errors.New("no unpaid payout record for this player")
	// ErrAllSettled: nothing left to offer in the admin flow
	ErrAllSettled = errors.New("every payout record is already paid")
)

// MessageRef points at the rendered payout message so it can be
// edited as records get marked paid
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Record is the settlement snapshot of one player. The total is
// computed once when the batch starts and never again, even if the
// underlying ledger keeps accruing
type Record struct {
	Identity string  `json:"identity"`
	Label    string  `json:"label"`
	Total    float64 `json:"total"`
	Paid     bool    `json:"paid"`
}

// Batch is the set of payout records of one ranch for one settlement
// cycle. It is persisted while at least one record is unpaid and
// deleted the moment the last one gets paid
type Batch struct {
	ID      uuid.UUID  `json:"id"`
	Ranch   string     `json:"ranch"`
	Period  string     `json:"period"`
	Records []*Record  `json:"records"`
	Message MessageRef `json:"message"`
}

// Unpaid returns the records not yet marked paid
func (batch *Batch) Unpaid() []*Record {
	var records []*Record
	for _, record := range batch.Records {
		if !record.Paid {
			records = append(records, record)
		}
	}
	return records
}

// UnpaidByIdentity finds the unpaid record of a player, nil if the
// player is unknown or already paid
func (batch *Batch) UnpaidByIdentity(identity string) *Record {
	for _, record := range batch.Records {
		if record.Identity == identity && !record.Paid {
			return record
		}
	}
	return nil
}

// Settled tells if every record in the batch has been paid
func (batch *Batch) Settled() bool {
	for _, record := range batch.Records {
		if !record.Paid {
			return false
		}
	}
	return true
}
