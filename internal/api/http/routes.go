package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/barra2-point/internal/common"
	"github.com/i474232898/barra2-point/internal/reanalysis"
	"github.com/i474232898/barra2-point/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app. base is the run
// configuration that POST /runs starts from.
func RegisterRoutes(app *fiber.App, service *reanalysis.Service, runs reanalysis.RunStore, base reanalysis.RunConfig) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		list, err := runs.List()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(fiber.Map{"runs": []reanalysis.RunSummary{}})
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list runs")
		}
		return c.JSON(fiber.Map{"runs": list})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		latest, err := runs.GetLatest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no run recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest run")
		}
		return c.JSON(latest)
	})

	// POST /runs runs the pipeline synchronously and returns its summary.
	v1.Post("/runs", func(c *fiber.Ctx) error {
		var req runRequest
		if err := req.bind(c, base); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cfg := base
		cfg.Range = reanalysis.DateRange{Start: req.From, End: req.To}
		cfg.Variables = req.Variables

		summary, err := service.Run(c.UserContext(), cfg)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(summary)
		}
		return c.Status(fiber.StatusCreated).JSON(summary)
	})
}

// runRequest holds the optional overrides accepted by POST /runs; missing
// values fall back to the base configuration.
type runRequest struct {
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required,gtefield=From"`
	Variables []string  `validate:"required,min=1,dive,required,excludesall=/\\"`
}

func (r *runRequest) bind(c *fiber.Ctx, base reanalysis.RunConfig) error {
	r.From, r.To = base.Range.Start, base.Range.End
	r.Variables = base.Variables

	if s := c.Query("from"); s != "" {
		ts, err := common.ParseTime(s)
		if err != nil {
			return err
		}
		r.From = ts
	}
	if s := c.Query("to"); s != "" {
		ts, err := common.ParseTime(s)
		if err != nil {
			return err
		}
		r.To = ts
	}
	if vars := common.SplitList(c.Query("vars")); len(vars) > 0 {
		r.Variables = vars
	}
	return nil
}
