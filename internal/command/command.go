// Package command builds the farmctl command tree on top of the domain services.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/kjstillabower/farm-records-service/internal/app"
	"github.com/kjstillabower/farm-records-service/internal/models"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/validation"
)

// store is the read and delete surface the CLI needs from an entity service.
type store[T any] interface {
	GetAll(ctx context.Context) []T
	GetByID(ctx context.Context, id int) (T, bool)
	Delete(ctx context.Context, id int) (bool, error)
}

// table renders one entity kind as text.
type table[T any] struct {
	header string
	row    func(T) string
}

// NewApp returns the farmctl root command writing to out.
func NewApp(a *app.App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "farmctl",
		Usage:  "Farm records control",
		Writer: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON",
			},
		},
		Commands: []*cli.Command{
			forecastCommand(a, out),
			currentCommand(a, out),
			entityCommand("crops", "crop", a.Crops, a.Crops.GetByFarmID, out, cropTable),
			entityCommand("expenses", "expense", a.Expenses, a.Expenses.GetByFarmID, out, expenseTable),
			entityCommand("tasks", "task", a.Tasks, a.Tasks.GetByFarmID, out, taskTable),
			entityCommand[models.Farm]("farms", "farm", a.Farms, nil, out, farmTable),
		},
	}
}

func forecastCommand(a *app.App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "show the weather forecast, earliest day first",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entries := a.Weather.GetForecast(ctx)
			if cmd.Bool("json") {
				return emitJSON(out, entries)
			}
			return emitTable(out, forecastTable, entries)
		},
	}
}

func currentCommand(a *app.App, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "current",
		Usage: "show today's weather",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entry, ok := a.Weather.GetCurrentWeather(ctx)
			if !ok {
				return fmt.Errorf("no current weather available")
			}
			if cmd.Bool("json") {
				return emitJSON(out, entry)
			}
			return emitTable(out, forecastTable, []models.ForecastEntry{entry})
		},
	}
}

// entityCommand builds "<name> list|get|delete". byFarm enables list --farm.
func entityCommand[T any](name, kind string, s store[T], byFarm func(context.Context, int) []T, out io.Writer, tbl table[T]) *cli.Command {
	list := &cli.Command{
		Name:  "list",
		Usage: "list " + name,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var items []T
			if farm := int(cmd.Int("farm")); farm != 0 && byFarm != nil {
				items = byFarm(ctx, farm)
			} else {
				items = s.GetAll(ctx)
			}
			if cmd.Bool("json") {
				return emitJSON(out, items)
			}
			return emitTable(out, tbl, items)
		},
	}
	if byFarm != nil {
		list.Flags = []cli.Flag{
			&cli.IntFlag{
				Name:  "farm",
				Usage: "only " + name + " of this farm id",
			},
		}
	}

	return &cli.Command{
		Name:  name,
		Usage: "query and delete " + name,
		Commands: []*cli.Command{
			list,
			{
				Name:      "get",
				Usage:     "show one " + kind,
				UsageText: "farmctl " + name + " get ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := argID(cmd)
					if err != nil {
						return err
					}
					item, ok := s.GetByID(ctx, id)
					if !ok {
						return fmt.Errorf("%s %d not found", kind, id)
					}
					if cmd.Bool("json") {
						return emitJSON(out, item)
					}
					return emitTable(out, tbl, []T{item})
				},
			},
			{
				Name:      "delete",
				Usage:     "delete one " + kind,
				UsageText: "farmctl " + name + " delete ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := argID(cmd)
					if err != nil {
						return err
					}
					collector := &notify.Collector{}
					deleted, err := s.Delete(notify.WithCollector(ctx, collector), id)
					for _, msg := range collector.Messages() {
						fmt.Fprintf(out, "! %s\n", msg)
					}
					if err != nil {
						return fmt.Errorf("delete %s %d: %w", kind, id, err)
					}
					if !deleted {
						return fmt.Errorf("%s %d was not deleted", kind, id)
					}
					fmt.Fprintf(out, "deleted %s %d\n", kind, id)
					return nil
				},
			},
		},
	}
}

func argID(cmd *cli.Command) (int, error) {
	if cmd.Args().Len() != 1 {
		return 0, fmt.Errorf("expected exactly one ID argument")
	}
	id, err := validation.ParseRecordID(cmd.Args().First())
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q: %w", cmd.Args().First(), err)
	}
	return id, nil
}

func emitJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func emitTable[T any](out io.Writer, tbl table[T], items []T) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, tbl.header)
	for _, item := range items {
		fmt.Fprintln(tw, tbl.row(item))
	}
	return tw.Flush()
}

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func relation(id int) string {
	if id == 0 {
		return "-"
	}
	return strconv.Itoa(id)
}

var cropTable = table[models.Crop]{
	header: "ID\tTYPE\tFIELD\tSTATUS\tPLANTED\tHARVEST\tFARM",
	row: func(c models.Crop) string {
		return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s",
			c.ID, c.CropType, c.FieldLocation, c.Status, c.PlantingDate, c.ExpectedHarvest, relation(c.FarmID))
	},
}

var expenseTable = table[models.Expense]{
	header: "ID\tDATE\tCATEGORY\tAMOUNT\tFARM\tDESCRIPTION",
	row: func(e models.Expense) string {
		return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s",
			e.ID, e.Date, e.Category, money(e.Amount), relation(e.FarmID), e.Description)
	},
}

var farmTable = table[models.Farm]{
	header: "ID\tNAME\tLOCATION\tSIZE\tCREATED",
	row: func(f models.Farm) string {
		return fmt.Sprintf("%d\t%s\t%s\t%s %s\t%s",
			f.ID, f.Name, f.Location, humanize.Commaf(f.Size), f.Unit, f.CreatedAt)
	},
}

var taskTable = table[models.Task]{
	header: "ID\tTITLE\tDUE\tPRIORITY\tDONE\tFARM",
	row: func(t models.Task) string {
		done := "no"
		if t.Completed {
			done = "yes"
		}
		return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s",
			t.ID, t.Title, t.DueDate, t.Priority, done, relation(t.FarmID))
	},
}

var forecastTable = table[models.ForecastEntry]{
	header: "DATE\tCONDITION\tHIGH\tLOW\tHUMIDITY\tPRECIP",
	row: func(e models.ForecastEntry) string {
		return fmt.Sprintf("%s\t%s\t%s\t%s\t%s%%\t%s%%",
			e.Date, e.Condition,
			humanize.Ftoa(e.Temperature.High), humanize.Ftoa(e.Temperature.Low),
			humanize.Ftoa(e.Humidity), humanize.Ftoa(e.Precipitation))
	},
}
