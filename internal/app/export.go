package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"nft-sales-bot/internal/marketplace"
)

// ExportOptions hold parameters for exporting recent sale history.
type ExportOptions struct {
	CSVPath      string
	PNGPath      string
	LookbackDays int
	MaxPoints    int
}

// Export fetches recent sales and renders them as CSV and/or a PNG price
// chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = a.Config.Reservoir.LookbackDays
	}

	sales, err := a.newMarketplace().RecentSales(ctx, lookback)
	if err != nil {
		return err
	}
	if len(sales) == 0 {
		a.Logger.Info().Msg("no sales found for export window")
		return nil
	}

	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].Timestamp.Before(sales[j].Timestamp)
	})

	downsampled := downsampleSales(sales, opts.MaxPoints)
	a.Logger.Info().Int("total", len(sales)).Int("exported", len(downsampled)).Msg("exporting sales")

	if opts.CSVPath != "" {
		if err := writeSalesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			a.Logger.Warn().Msg("need at least two sales to render a chart, skipping png")
			return nil
		}
		if err := writeSalesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSales(sales []marketplace.Sale, max int) []marketplace.Sale {
	if max <= 0 || len(sales) <= max {
		return sales
	}

	result := make([]marketplace.Sale, 0, max)
	step := float64(len(sales)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(sales) {
			idx = len(sales) - 1
		}
		result = append(result, sales[idx])
	}
	return result
}

func writeSalesCSV(path string, sales []marketplace.Sale) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "token_id", "collection", "order_side", "price_eth", "order_hash"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sale := range sales {
		record := []string{
			sale.Timestamp.UTC().Format(time.RFC3339),
			sale.TokenID,
			sale.CollectionName,
			string(sale.Side),
			sale.PriceETH.String(),
			sale.OrderHash,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSalesPNG(path string, sales []marketplace.Sale) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(sales))
	prices := make([]float64, len(sales))
	for i, sale := range sales {
		x[i] = sale.Timestamp
		prices[i] = sale.PriceETH.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (ETH)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Sale price",
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
