package models

// BedStatus 床位状态
type BedStatus string

const (
	BedAvailable        BedStatus = "available"
	BedOccupied         BedStatus = "occupied"
	BedReserved         BedStatus = "reserved"
	BedPendingDischarge BedStatus = "pending_discharge"
	BedBlocked          BedStatus = "blocked" // maintenance, cleaning, isolation
)

// Bed 床位
type Bed struct {
	BedID      string    `json:"bed_id"`
	Label      string    `json:"label"`
	Department string    `json:"department"`
	Status     BedStatus `json:"status"`
}
