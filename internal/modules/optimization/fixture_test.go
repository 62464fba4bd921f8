package optimization

var fixtureDates = []string{
	"2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07",
	"2020-01-08", "2020-01-09", "2020-01-10",
}

var fixturePrices = map[string][]float64{
	"AAPL": {
		74.09522915781685, 73.37487600602452, 73.95954620114364, 73.61170443949048,
		74.79584660682033, 76.38457068132122, 76.55725808072349,
	},
	"TSLA": {86.052, 88.602, 90.308, 93.812, 98.428, 96.268, 95.63},
}

// fixturePanel lists TSLA first so tests also cover ticker sorting.
func fixturePanel() PricePanel {
	var panel PricePanel
	for _, ticker := range []string{"TSLA", "AAPL"} {
		for i, date := range fixtureDates {
			panel = append(panel, PriceRow{Ticker: ticker, Date: date, AdjClose: fixturePrices[ticker][i]})
		}
	}
	return panel
}

var (
	fixtureMean = []float64{0.5447964352756666, 1.7589135612168831}
	fixtureCov  = []float64{
		1.4082325612441755, -1.2064362053066606,
		-1.2064362053066606, 7.306076509332504,
	}
	fixtureMinVarWeights  = []float64{0.7650196708869345, 0.23498032911306568}
	fixtureMinVarVariance = 0.7938368339584068
)
