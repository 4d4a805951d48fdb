package entity

// TextRow is one recognised line as stored in ocr_data.
type TextRow struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}
