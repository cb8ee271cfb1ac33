package inventory

// ToSheets converts a reams+loose-sheets pair into an absolute sheet count.
// sheetsPerUnit is the material's configured ream size.
func ToSheets(reams, looseSheets, sheetsPerUnit int64) (int64, error) {
	if sheetsPerUnit <= 0 {
		return 0, &ValidationError{Field: "sheets_per_unit", Reason: "must be greater than zero"}
	}
	if reams < 0 {
		return 0, &ValidationError{Field: "reams", Reason: "must not be negative"}
	}
	if looseSheets < 0 {
		return 0, &ValidationError{Field: "sheets", Reason: "must not be negative"}
	}
	return reams*sheetsPerUnit + looseSheets, nil
}

// ToDisplay derives the reams+sheets view from an absolute sheet count.
// A non-positive sheetsPerUnit yields zero reams and the raw sheet count.
func ToDisplay(totalSheets, sheetsPerUnit int64) DisplayStock {
	if sheetsPerUnit <= 0 {
		return DisplayStock{Sheets: totalSheets}
	}
	return DisplayStock{
		Reams:  totalSheets / sheetsPerUnit,
		Sheets: totalSheets % sheetsPerUnit,
	}
}
