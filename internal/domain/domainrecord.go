package domain

import "time"

// DomainStatus tracks a purchased custom domain through attachment.
type DomainStatus string

const (
	DomainStatusPurchased   DomainStatus = "purchased"
	DomainStatusConfiguring DomainStatus = "configuring"
	DomainStatusVerifying   DomainStatus = "verifying"
	DomainStatusActive      DomainStatus = "active"
	DomainStatusFailed      DomainStatus = "failed"
)

// DomainRecord is a registrar-purchased domain bound (or being bound) to a project.
type DomainRecord struct {
	ID                 string
	ProjectID          string
	DomainName         string
	Registrar          string
	Status             DomainStatus
	PurchasePriceCents int64
	RenewalPriceCents  int64
	RenewalDate        *time.Time
}
