package matchdto

// OfferSummary is one entry of the open-offer list shown to idle clients.
// Record is the creator's record snapshotted when the offer was opened.
type OfferSummary struct {
	ID      string `json:"id"`
	Creator string `json:"creator"`
	Record  Record `json:"record"`
}
