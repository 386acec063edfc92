// Package commands implements CLI command handlers for gridcube.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/geom"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gridcube/gridcube/internal/config"
	"github.com/gridcube/gridcube/internal/dispatch"
	"github.com/gridcube/gridcube/internal/fetch"
	"github.com/gridcube/gridcube/internal/geometry"
	"github.com/gridcube/gridcube/internal/grid"
	"github.com/gridcube/gridcube/internal/job"
	"github.com/gridcube/gridcube/internal/mask"
	"github.com/gridcube/gridcube/internal/observability"
	"github.com/gridcube/gridcube/internal/store"
)

// CLI argument errors.
var (
	// ErrAOIInput is returned unless exactly one AOI source is supplied.
	ErrAOIInput = errors.New("provide exactly one of --geometry-file or --bbox")
	// ErrBadDate is returned for unparseable date flags.
	ErrBadDate = errors.New("dates must be YYYY-MM-DD")
)

// dateLayout is the accepted format of the date flags.
const dateLayout = "2006-01-02"

// geographicCRS is the data cube frame used for bounding-box runs.
const geographicCRS = "EPSG:4326"

// BuildCommand holds configuration for the build command.
type BuildCommand struct {
	configPath string

	geometryFile  string
	geometryLayer string
	bbox          []float64

	gridStrategy string
	gridD        float64
	gridOverlap  bool
	gridCRS      string
	gridRes      float64
	gridIDColumn string

	startDate       string
	endDate         string
	frequencyMonths int
	includePartial  bool

	epsg       int
	resolution float64
	chunkSize  int
	bands      []string
	varName    string
	maskHook   string

	backend     string
	endpoint    string
	workers     int
	maxAttempts int

	storePath  string
	initialize bool
	limit      int
	logsDir    string
	debug      bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	bc := &BuildCommand{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the analysis grid and populate the data cube",
		Long: `Build tiles the AOI into grid cells, aligns them to a canonical mosaic
grid, enumerates one task per (cell, time window), and dispatches the tasks
to the configured execution backend. Each task fetches imagery, applies the
masking hook, composites over time, and writes its block into the shared
chunked array store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bc.run(cmd, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()

	flags.StringVar(&bc.configPath, "config", "", "config file path (default: .gridcube.yaml in CWD or $HOME)")

	flags.StringVar(&bc.geometryFile, "geometry-file", "", "geometry file (GeoJSON or Shapefile) to use as AOI")
	flags.StringVar(&bc.geometryLayer, "geometry-layer", "", "layer name for directory inputs")
	flags.Float64SliceVar(&bc.bbox, "bbox", nil, "bounding box in lon/lat: min_lon,min_lat,max_lon,max_lat")

	flags.StringVar(&bc.gridStrategy, "grid-strategy", config.DefaultGridStrategy, "grid generation strategy (square, majortom)")
	flags.Float64Var(&bc.gridD, "grid-d", config.DefaultGridD, "grid cell size (square: meters, majortom: arc-seconds)")
	flags.BoolVar(&bc.gridOverlap, "grid-overlap", config.DefaultGridOverlap, "generate overlapping cells (majortom only)")
	flags.StringVar(&bc.gridCRS, "grid-crs", config.DefaultTargetCRS, "target CRS for grid cells")
	flags.Float64Var(&bc.gridRes, "grid-res", config.DefaultResM, "mosaic resolution in meters")
	flags.StringVar(&bc.gridIDColumn, "grid-id-column", config.DefaultGridIDColumn, "attribute name the run manifest publishes cell ids under")

	flags.StringVar(&bc.startDate, "start-date", "", "start date (YYYY-MM-DD); only year and month are used")
	flags.StringVar(&bc.endDate, "end-date", "", "end date (YYYY-MM-DD); only year and month are used")
	flags.IntVar(&bc.frequencyMonths, "time-frequency-months", config.DefaultFrequencyMonths, "temporal sampling frequency in months")
	flags.BoolVar(&bc.includePartial, "include-partial-window", false, "include a truncated trailing window when the range does not divide evenly")

	flags.IntVar(&bc.epsg, "epsg", config.DefaultEPSG, "EPSG code of the data cube frame (only 4326 is supported)")
	flags.Float64Var(&bc.resolution, "resolution", config.DefaultResolution, "spatial resolution in degrees (bounding-box runs)")
	flags.IntVar(&bc.chunkSize, "chunk-size", config.DefaultChunkSize, "chunk size of the data cube")
	flags.StringSliceVar(&bc.bands, "bands", config.DefaultBands, "bands to include in the data cube")
	flags.StringVar(&bc.varName, "varname", config.DefaultVarName, "variable name of the output array")
	flags.StringVar(&bc.maskHook, "mask-hook", config.DefaultHook, "masking hook (none, class)")

	flags.StringVar(&bc.backend, "backend", config.DefaultBackend, "execution backend (local, remote)")
	flags.StringVar(&bc.endpoint, "endpoint", "", "function-execution service endpoint (remote backend)")
	flags.IntVar(&bc.workers, "workers", config.DefaultWorkers, "worker pool size (local backend)")
	flags.IntVar(&bc.maxAttempts, "max-attempts", config.DefaultMaxAttempts, "per-task attempt bound (local backend)")

	flags.StringVar(&bc.storePath, "store-path", config.DefaultStorePath, "array store directory")
	flags.BoolVar(&bc.initialize, "initialize", config.DefaultInitialize, "initialize the array store before processing")
	flags.IntVar(&bc.limit, "limit", 0, "limit the number of tasks to process")
	flags.StringVar(&bc.logsDir, "logs-dir", "./logs", "directory for the per-task CSV log and run manifest")
	flags.BoolVar(&bc.debug, "debug", false, "enable debug logging")

	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")

	return cmd
}

// applyConfig backfills flag values from the loaded configuration file for
// every flag the user did not set explicitly.
func (bc *BuildCommand) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed

	if !set("grid-strategy") {
		bc.gridStrategy = cfg.Grid.Strategy
	}

	if !set("grid-d") {
		bc.gridD = cfg.Grid.D
	}

	if !set("grid-overlap") {
		bc.gridOverlap = cfg.Grid.Overlap
	}

	if !set("grid-crs") {
		bc.gridCRS = cfg.Grid.TargetCRS
	}

	if !set("grid-res") {
		bc.gridRes = cfg.Grid.ResM
	}

	if !set("grid-id-column") {
		bc.gridIDColumn = cfg.Grid.IDColumn
	}

	if !set("time-frequency-months") {
		bc.frequencyMonths = cfg.Job.FrequencyMonths
	}

	if !set("include-partial-window") {
		bc.includePartial = cfg.Job.IncludePartialWindow
	}

	if !set("epsg") {
		bc.epsg = cfg.Job.EPSG
	}

	if !set("resolution") {
		bc.resolution = cfg.Job.Resolution
	}

	if !set("chunk-size") {
		bc.chunkSize = cfg.Job.ChunkSize
	}

	if !set("bands") {
		bc.bands = cfg.Job.Bands
	}

	if !set("varname") {
		bc.varName = cfg.Job.VarName
	}

	if !set("mask-hook") {
		bc.maskHook = cfg.Job.Hook
	}

	if !set("backend") {
		bc.backend = cfg.Dispatch.Backend
	}

	if !set("endpoint") {
		bc.endpoint = cfg.Dispatch.Endpoint
	}

	if !set("workers") {
		bc.workers = cfg.Dispatch.Workers
	}

	if !set("max-attempts") {
		bc.maxAttempts = cfg.Dispatch.MaxAttempts
	}

	if !set("store-path") {
		bc.storePath = cfg.Store.Path
	}

	if !set("initialize") {
		bc.initialize = cfg.Store.Initialize
	}

	if !set("debug") {
		bc.debug = cfg.Logging.Debug
	}
}

// run executes the full build: grid generation, alignment, job validation,
// store initialization, task enumeration, dispatch, and reporting.
// Configuration and grid errors are fatal and occur before any store
// mutation; per-task errors only show up in the final report.
func (bc *BuildCommand) run(cmd *cobra.Command, out io.Writer) error {
	cfg, err := config.LoadConfig(bc.configPath)
	if err != nil {
		return err
	}

	bc.applyConfig(cmd, cfg)

	logger := observability.NewLogger(cmd.ErrOrStderr(), bc.debug)

	start, end, err := bc.parseDates()
	if err != nil {
		return err
	}

	hook, err := mask.ForName(bc.maskHook)
	if err != nil {
		return err
	}

	hasGeometry := bc.geometryFile != ""
	hasBBox := len(bc.bbox) == 4

	if hasGeometry == hasBBox {
		return ErrAOIInput
	}

	var (
		cells    []grid.Cell
		gridSpec grid.Spec
	)

	if hasGeometry {
		aoi, loadErr := geometry.Load(bc.geometryFile, bc.geometryLayer)
		if loadErr != nil {
			return loadErr
		}

		generator, genErr := grid.ForStrategy(bc.gridStrategy)
		if genErr != nil {
			return genErr
		}

		gridSpec = grid.Spec{
			D:         bc.gridD,
			Overlap:   bc.gridOverlap,
			TargetCRS: bc.gridCRS,
			ResM:      bc.gridRes,
			IDColumn:  bc.gridIDColumn,
		}

		cells, err = generator.Generate(aoi, gridSpec)
		if err != nil {
			return err
		}

		logger.Info("generated grid", "strategy", bc.gridStrategy, "cells", len(cells))
	} else {
		cells, gridSpec, err = bc.bboxCells()
		if err != nil {
			return err
		}

		logger.Info("tiled bounding box", "cells", len(cells))
	}

	jobCfg := job.Config{
		Start:                start,
		End:                  end,
		FrequencyMonths:      bc.frequencyMonths,
		IncludePartialWindow: bc.includePartial,
		EPSG:                 bc.epsg,
		Resolution:           bc.resolution,
		ChunkSize:            bc.chunkSize,
		Bands:                bc.bands,
		VarName:              bc.varName,
		Hook:                 hook,
	}

	if hasBBox {
		jobCfg.Bounds = &job.Bounds{bc.bbox[0], bc.bbox[1], bc.bbox[2], bc.bbox[3]}
	} else {
		jobCfg.Cells = cells
	}

	validated, err := job.New(jobCfg)
	if err != nil {
		return err
	}

	_, targetCells, mosaic, err := grid.Align(cells, gridSpec)
	if err != nil {
		return err
	}

	windows := validated.Windows()
	logger.Info("aligned mosaic",
		"crs", mosaic.CRS, "width", mosaic.Width, "height", mosaic.Height,
		"windows", len(windows))

	st, err := store.NewLocalStore(bc.storePath)
	if err != nil {
		return err
	}

	storage := store.NewStorage(st)

	var array *store.Array

	if bc.initialize {
		meta := store.NewArrayMeta(len(windows), mosaic.Height, mosaic.Width, len(bc.bands), bc.chunkSize, mosaic.CRS)

		array, err = storage.Initialize(bc.varName, meta)
		if err != nil {
			return err
		}
	} else {
		array, err = storage.Open(bc.varName)
		if err != nil {
			return err
		}
	}

	schedule, err := job.NewSchedule(validated, targetCells, mosaic)
	if err != nil {
		return err
	}

	tasks := schedule.Limit(bc.limit).Collect()
	logger.Info("enumerated tasks", "count", len(tasks))

	backend, err := bc.buildBackend()
	if err != nil {
		return err
	}

	pipeline := dispatch.NewPipeline(validated, fetch.SyntheticSource{}, array, logger)
	results := backend.Submit(context.Background(), tasks, pipeline)

	report := dispatch.NewReport(results)
	report.RenderTable(out)

	commitErr := storage.Commit(fmt.Sprintf("Processed %d chunks", len(tasks)))
	if commitErr != nil {
		return commitErr
	}

	return bc.writeRunArtifacts(report, mosaic, gridSpec, len(cells), len(windows), logger)
}

func (bc *BuildCommand) parseDates() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, bc.startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrBadDate, bc.startDate)
	}

	end, err := time.Parse(dateLayout, bc.endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrBadDate, bc.endDate)
	}

	return start, end, nil
}

// bboxCells tiles a bounding-box AOI with chunk-sized cells in the
// geographic frame, so every task's write region is exactly one store chunk.
func (bc *BuildCommand) bboxCells() ([]grid.Cell, grid.Spec, error) {
	b := bc.bbox
	if b[2] <= b[0] || b[3] <= b[1] {
		return nil, grid.Spec{}, fmt.Errorf("%w: bounding box %v is degenerate", job.ErrConfigValidation, b)
	}

	aoi := geom.Polygon{[]geom.Point{
		{X: b[0], Y: b[1]},
		{X: b[2], Y: b[1]},
		{X: b[2], Y: b[3]},
		{X: b[0], Y: b[3]},
	}}

	spec := grid.Spec{
		D:         float64(bc.chunkSize) * bc.resolution,
		TargetCRS: geographicCRS,
		ResM:      bc.resolution,
		IDColumn:  bc.gridIDColumn,
	}

	cells, err := grid.SquareGenerator{}.Generate(aoi, spec)
	if err != nil {
		return nil, grid.Spec{}, err
	}

	return cells, spec, nil
}

func (bc *BuildCommand) buildBackend() (dispatch.Backend, error) {
	switch bc.backend {
	case config.BackendLocal:
		return &dispatch.LocalBackend{Workers: bc.workers, MaxAttempts: bc.maxAttempts}, nil
	case config.BackendRemote:
		if bc.endpoint == "" {
			return nil, config.ErrMissingEndpoint
		}

		return &dispatch.RemoteBackend{Endpoint: bc.endpoint}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, bc.backend)
	}
}

// runManifest is the YAML run summary written beside the CSV log.
type runManifest struct {
	Timestamp string   `yaml:"timestamp"`
	Backend   string   `yaml:"backend"`
	Strategy  string   `yaml:"strategy"`
	IDColumn  string   `yaml:"id_column"`
	Cells     int      `yaml:"cells"`
	Windows   int      `yaml:"windows"`
	Tasks     int      `yaml:"tasks"`
	Succeeded int      `yaml:"succeeded"`
	Failed    int      `yaml:"failed"`
	Bytes     int64    `yaml:"bytes_written"`
	VarName   string   `yaml:"varname"`
	Bands     []string `yaml:"bands"`
	Mosaic    struct {
		CRS     string  `yaml:"crs"`
		Res     float64 `yaml:"res"`
		OriginX float64 `yaml:"origin_x"`
		OriginY float64 `yaml:"origin_y"`
		Width   int     `yaml:"width"`
		Height  int     `yaml:"height"`
	} `yaml:"mosaic"`
}

// writeRunArtifacts saves the per-task CSV log and the YAML run manifest.
func (bc *BuildCommand) writeRunArtifacts(report dispatch.Report, mosaic grid.Mosaic, gridSpec grid.Spec, cells, windows int, logger *slog.Logger) error {
	mkdirErr := os.MkdirAll(bc.logsDir, 0o755)
	if mkdirErr != nil {
		return mkdirErr
	}

	stamp := time.Now().UTC().Unix()

	csvPath := filepath.Join(bc.logsDir, fmt.Sprintf("%d-%s.csv", stamp, bc.backend))

	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}

	writeErr := report.WriteCSV(csvFile)
	closeErr := csvFile.Close()

	if writeErr != nil {
		return writeErr
	}

	if closeErr != nil {
		return closeErr
	}

	manifest := runManifest{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backend:   bc.backend,
		Strategy:  bc.gridStrategy,
		IDColumn:  gridSpec.IDColumn,
		Cells:     cells,
		Windows:   windows,
		Tasks:     len(report.Results),
		Succeeded: len(report.Succeeded()),
		Failed:    len(report.Failed()),
		Bytes:     report.BytesWritten(),
		VarName:   bc.varName,
		Bands:     bc.bands,
	}
	manifest.Mosaic.CRS = mosaic.CRS
	manifest.Mosaic.Res = mosaic.Res
	manifest.Mosaic.OriginX = mosaic.OriginX
	manifest.Mosaic.OriginY = mosaic.OriginY
	manifest.Mosaic.Width = mosaic.Width
	manifest.Mosaic.Height = mosaic.Height

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(bc.logsDir, fmt.Sprintf("%d-manifest.yaml", stamp))

	manifestErr := os.WriteFile(manifestPath, data, 0o644)
	if manifestErr != nil {
		logger.Warn("could not write run manifest", "path", manifestPath, "error", manifestErr)
	}

	return nil
}
