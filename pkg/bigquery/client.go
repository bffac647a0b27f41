package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	ErrNotConfigured = errors.New("bigquery client not configured")
	ErrMissing       = errors.New("bigquery resource missing")
)

// TableSpec describes a table the service streams into.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// Client is a dataset-scoped wrapper around the BigQuery SDK.
type Client struct {
	bq         *bigquery.Client
	dataset    *bigquery.Dataset
	location   string
	autoCreate bool
	logg       *logger.Logger
}

// NewClient dials BigQuery and checks that the dataset exists, creating it
// when cfg.AutoCreate is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	if project == "" || datasetID == "" {
		return nil, fmt.Errorf("%w: project and dataset are required", ErrNotConfigured)
	}

	bq, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("dial bigquery: %w", err)
	}
	c := &Client{
		bq:         bq,
		dataset:    bq.Dataset(datasetID),
		location:   cfg.Location,
		autoCreate: cfg.AutoCreate,
		logg:       logg,
	}
	if err := c.ensureDataset(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) ensureDataset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := c.dataset.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("dataset %s metadata: %w", c.dataset.DatasetID, err)
	}
	if !c.autoCreate {
		return fmt.Errorf("%w: dataset %s", ErrMissing, c.dataset.DatasetID)
	}
	if err := c.dataset.Create(ctx, &bigquery.DatasetMetadata{Location: c.location}); err != nil {
		return fmt.Errorf("create dataset %s: %w", c.dataset.DatasetID, err)
	}
	c.info(ctx, "bigquery dataset created", map[string]any{"dataset": c.dataset.DatasetID})
	return nil
}

// EnsureTable verifies spec.Name exists. With auto-create on, a missing table
// is created day-partitioned on spec.PartitionField.
func (c *Client) EnsureTable(ctx context.Context, spec TableSpec) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("%w: table name is required", ErrNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("table %s metadata: %w", name, err)
	case !c.autoCreate:
		return fmt.Errorf("%w: table %s.%s", ErrMissing, c.dataset.DatasetID, name)
	}

	meta := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.PartitionField}
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	c.info(ctx, "bigquery table created", map[string]any{"dataset": c.dataset.DatasetID, "table": name})
	return nil
}

// Ping reads dataset metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.dataset.Metadata(ctx)
	return err
}

// Put streams rows into table. Rows that implement bigquery.ValueSaver can
// carry an insert id for best-effort de-duplication.
func (c *Client) Put(ctx context.Context, table string, rows any) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func (c *Client) info(ctx context.Context, msg string, fields map[string]any) {
	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, fields), msg)
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
