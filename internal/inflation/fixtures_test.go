package inflation

func row(year, jpy, usd, gbp, eur string) CpiRow {
	return CpiRow{Year: year, Values: map[string]string{"jpy": jpy, "usd": usd, "gbp": gbp, "eur": eur}}
}

func testTable() *CpiTable {
	return NewCpiTable([]CpiRow{
		row("1950", "", "24.1", "", ""),
		row("1980", "100", "82.4", "78.9", "85.2"),
		row("2000", "110", "172.2", "156.1", "158.8"),
		row("2023", "140", "307.3", "295.5", "285.1"),
		row("2024", "142", "310.3", "298.2", "287.8"),
	})
}

func liveRateInput() *RateInput {
	return &RateInput{Values: map[string]float64{
		"jpy": 1,
		"usd": 1.0 / 150,
		"gbp": 1.0 / 190,
		"eur": 1.0 / 160,
	}}
}
