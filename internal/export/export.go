// Package export writes the shutdown artifacts: a wallet backup and a consolidated history export.
package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetTrades = "Trades"
	sheetPnL    = "PnL"
	sheetWallet = "Wallet"

	workbookName  = "bot_export.xlsx"
	tradesCSVName = "trades.csv"
	pnlCSVName    = "pnl.csv"
	timeLayout    = "2006-01-02 15:04:05"
)

type tradeReader interface {
	All() ([]domain.TradeRecord, error)
}

type snapshotReader interface {
	All() ([]domain.PnLSnapshot, error)
}

type walletReader interface {
	Get() domain.Wallet
}

type walletBackup interface {
	Backup(dir string, now time.Time) (string, error)
}

// Params configures an Exporter.
type Params struct {
	Trades    tradeReader
	Snapshots snapshotReader
	Wallet    walletReader
	Backup    walletBackup
	// Dir receives the workbook and the trades CSV.
	Dir string
	// BackupDir receives timestamped wallet copies.
	BackupDir string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Artifacts lists the files produced by one export.
type Artifacts struct {
	WalletBackup string
	Workbook     string
	TradesCSV    string
	PnLCSV       string
}

// Exporter produces the backup and export artifacts.
type Exporter struct {
	p Params
	l *zap.Logger
}

func New(p Params) (*Exporter, error) {
	if p.Trades == nil || p.Snapshots == nil || p.Wallet == nil || p.Backup == nil {
		return nil, errors.New("trades, snapshots, wallet and backup are required")
	}
	if p.Dir == "" {
		return nil, errors.New("export dir is required")
	}
	if p.BackupDir == "" {
		p.BackupDir = filepath.Join(p.Dir, "backups")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Exporter{p: p, l: l}, nil
}

// tradeRow mirrors the trade log column schema.
type tradeRow struct {
	Time   string `csv:"Time"`
	Pair   string `csv:"Pair"`
	Action string `csv:"Action"`
	Price  string `csv:"Price"`
	Amount string `csv:"Amount"`
	Value  string `csv:"Value"`
}

func newTradeRow(t domain.TradeRecord) tradeRow {
	return tradeRow{
		Time:   t.Time.Format(timeLayout),
		Pair:   t.Pair,
		Action: t.Action.String(),
		Price:  t.Price.StringFixed(2),
		Amount: t.Amount.StringFixed(6),
		Value:  t.Value.StringFixed(2),
	}
}

// Export backs up the wallet, then writes the workbook and the trades CSV.
// Every step is attempted; the first error is returned.
func (e *Exporter) Export(ctx context.Context) (Artifacts, error) {
	var (
		out      Artifacts
		firstErr error
	)
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	now := e.p.Now()

	backup, err := e.p.Backup.Backup(e.p.BackupDir, now)
	if err != nil {
		e.l.Error("wallet backup failed", zap.Error(err))
		keep(errors.Wrap(err, "wallet backup"))
	} else {
		out.WalletBackup = backup
		e.l.Info("wallet backup saved", zap.String("path", backup))
	}

	if err := ctx.Err(); err != nil {
		keep(err)
		return out, firstErr
	}

	trades, err := e.p.Trades.All()
	if err != nil {
		keep(errors.Wrap(err, "read trade log"))
	}
	snapshots, err := e.p.Snapshots.All()
	if err != nil {
		keep(errors.Wrap(err, "read PnL log"))
	}
	wallet := e.p.Wallet.Get()

	if err := os.MkdirAll(e.p.Dir, 0o755); err != nil {
		keep(errors.Wrap(err, "create export dir"))
		return out, firstErr
	}

	workbook := filepath.Join(e.p.Dir, workbookName)
	if err := writeWorkbook(workbook, trades, snapshots, wallet); err != nil {
		e.l.Error("export failed", zap.Error(err))
		keep(err)
	} else {
		out.Workbook = workbook
		e.l.Info("export written", zap.String("path", workbook), zap.Int("trades", len(trades)), zap.Int("pnl_snapshots", len(snapshots)))
	}

	csvPath := filepath.Join(e.p.Dir, tradesCSVName)
	if err := writeTradesCSV(csvPath, trades); err != nil {
		e.l.Error("trades csv export failed", zap.Error(err))
		keep(err)
	} else {
		out.TradesCSV = csvPath
	}

	pnlPath := filepath.Join(e.p.Dir, pnlCSVName)
	if err := writePnLCSV(pnlPath, snapshots); err != nil {
		e.l.Error("pnl csv export failed", zap.Error(err))
		keep(err)
	} else {
		out.PnLCSV = pnlPath
	}

	return out, firstErr
}

func writeTradesCSV(path string, trades []domain.TradeRecord) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		row := newTradeRow(t)
		rows = append(rows, &row)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trades csv")
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return errors.Wrap(err, "write trades csv")
	}
	return nil
}

// writePnLCSV uses the same columns as the PnL sheet, which vary with the configured assets.
func writePnLCSV(path string, snapshots []domain.PnLSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create pnl csv")
	}
	defer f.Close()

	w := gocsv.NewSafeCSVWriter(csv.NewWriter(f))
	for _, row := range pnlRows(snapshots) {
		record := make([]string, 0, len(row))
		for _, cell := range row {
			switch v := cell.(type) {
			case float64:
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			case string:
				record = append(record, v)
			}
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "write pnl csv")
		}
	}
	w.Flush()

	return errors.Wrap(w.Error(), "flush pnl csv")
}

func writeWorkbook(path string, trades []domain.TradeRecord, snapshots []domain.PnLSnapshot, wallet domain.Wallet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTrades); err != nil {
		return errors.Wrap(err, "rename default sheet")
	}
	for _, name := range []string{sheetPnL, sheetWallet} {
		if _, err := f.NewSheet(name); err != nil {
			return errors.Wrapf(err, "create %s sheet", name)
		}
	}

	tradeRows := [][]interface{}{{"Time", "Pair", "Action", "Price", "Amount", "Value"}}
	for _, t := range trades {
		r := newTradeRow(t)
		tradeRows = append(tradeRows, []interface{}{r.Time, r.Pair, r.Action, t.Price.InexactFloat64(), t.Amount.InexactFloat64(), t.Value.InexactFloat64()})
	}
	if err := writeRows(f, sheetTrades, tradeRows); err != nil {
		return err
	}

	if err := writeRows(f, sheetPnL, pnlRows(snapshots)); err != nil {
		return err
	}

	assets := sortedKeys(wallet)
	header := make([]interface{}, 0, len(assets))
	values := make([]interface{}, 0, len(assets))
	for _, asset := range assets {
		header = append(header, strings.ToUpper(asset))
		values = append(values, wallet[asset].InexactFloat64())
	}
	if err := writeRows(f, sheetWallet, [][]interface{}{header, values}); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "save workbook")
	}
	return nil
}

// pnlRows flattens snapshots into Time, balances, prices, totals and PnL columns.
// Columns are the union over all snapshots so the sheet survives configuration changes.
func pnlRows(snapshots []domain.PnLSnapshot) [][]interface{} {
	var assets, priceKeys, bases []string
	seenAsset, seenPrice, seenBase := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, s := range snapshots {
		for a := range s.Balances {
			if !seenAsset[a] {
				seenAsset[a] = true
				assets = append(assets, a)
			}
		}
		for k := range s.Prices {
			if !seenPrice[k] {
				seenPrice[k] = true
				priceKeys = append(priceKeys, k)
			}
		}
		for b := range s.Totals {
			if !seenBase[b] {
				seenBase[b] = true
				bases = append(bases, b)
			}
		}
	}
	sort.Strings(assets)
	sort.Strings(priceKeys)
	sort.Strings(bases)

	header := []interface{}{"Time"}
	for _, a := range assets {
		header = append(header, strings.ToUpper(a))
	}
	for _, k := range priceKeys {
		header = append(header, k)
	}
	for _, b := range bases {
		header = append(header, "Total_"+strings.ToUpper(b))
	}
	for _, b := range bases {
		header = append(header, strings.ToUpper(b)+"_PnL")
	}

	rows := [][]interface{}{header}
	for _, s := range snapshots {
		row := []interface{}{s.Time.Format(timeLayout)}
		for _, a := range assets {
			row = append(row, s.Balances.Balance(a).InexactFloat64())
		}
		for _, k := range priceKeys {
			row = append(row, valueOf(s.Prices, k))
		}
		for _, b := range bases {
			row = append(row, valueOf(s.Totals, b))
		}
		for _, b := range bases {
			row = append(row, valueOf(s.PnL, b))
		}
		rows = append(rows, row)
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "resolve cell")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+1)
		}
	}
	return nil
}

func valueOf(m map[string]decimal.Decimal, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	return v.InexactFloat64()
}

func sortedKeys(w domain.Wallet) []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
