package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/jinford/seqsearch/internal/infra/ncbi"
	"github.com/jinford/seqsearch/internal/infra/quarantine"
	"github.com/jinford/seqsearch/internal/infra/sink"
	"github.com/jinford/seqsearch/internal/platform/config"
	"github.com/jinford/seqsearch/internal/platform/database"
)

// ServiceContainer は検索処理の依存関係を保持する
type ServiceContainer struct {
	Poller  *search.JobPoller
	Fetcher *search.RecordFetcher
	Parser  search.HitParser

	cfg        *config.Config
	logger     *slog.Logger
	quarantine *quarantine.Store
}

type containerOptions struct {
	logger       *slog.Logger
	httpClient   *http.Client
	searchClient search.SearchClient
	recordClient search.RecordClient
	sleeper      search.Sleeper
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerHTTPClient は NCBI クライアントが使う HTTP クライアントを差し替える
func WithContainerHTTPClient(client *http.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.httpClient = client
	}
}

// WithContainerSearchClient は検索サービスのクライアントを差し替える
func WithContainerSearchClient(client search.SearchClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.searchClient = client
	}
}

// WithContainerRecordClient はレコード取得サービスのクライアントを差し替える
func WithContainerRecordClient(client search.RecordClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.recordClient = client
	}
}

// WithContainerSleeper はポーリングの待機処理を差し替える
func WithContainerSleeper(s search.Sleeper) ContainerOption {
	return func(opts *containerOptions) {
		opts.sleeper = s
	}
}

// NewContainer は設定からコンテナを生成する。ネットワークやファイルには触れない
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	ncbiOpts := []ncbi.Option{
		ncbi.WithTimeout(cfg.HTTPTimeout),
		ncbi.WithLogger(options.logger),
	}
	if options.httpClient != nil {
		ncbiOpts = append(ncbiOpts, ncbi.WithHTTPClient(options.httpClient))
	}

	// SearchClient (BLAST URL API)
	searchClient := options.searchClient
	if searchClient == nil {
		searchClient = ncbi.NewBlastClient(ncbi.BlastConfig{
			URL:       cfg.Blast.URL,
			Program:   cfg.Blast.Program,
			Megablast: cfg.Blast.Megablast,
			Tool:      cfg.Entrez.Tool,
			Email:     cfg.Entrez.Email,
		}, ncbiOpts...)
	}

	// RecordClient (E-utilities)
	recordClient := options.recordClient
	if recordClient == nil {
		recordClient = ncbi.NewEntrezClient(ncbi.EntrezConfig{
			BaseURL:  cfg.Entrez.URL,
			Database: cfg.Entrez.Database,
			APIKey:   cfg.Entrez.APIKey,
			Tool:     cfg.Entrez.Tool,
			Email:    cfg.Entrez.Email,
		}, ncbiOpts...)
	}

	pollerOpts := []search.PollerOption{
		search.WithPollerLogger(options.logger),
		search.WithPollInterval(cfg.Poll.Interval),
		search.WithMaxPollAttempts(cfg.Poll.MaxAttempts),
		search.WithMaxResubmissions(cfg.Poll.MaxResubmissions),
		search.WithFailedAsTerminal(cfg.Poll.FailedIsTerminal),
	}
	if options.sleeper != nil {
		pollerOpts = append(pollerOpts, search.WithPollerSleeper(options.sleeper))
	}

	fetcher := search.NewRecordFetcher(recordClient,
		search.WithFetcherLogger(options.logger),
		search.WithMaxFetchAttempts(cfg.Fetch.MaxAttempts),
		search.WithFetchBackoff(cfg.Fetch.InitialBackoff, cfg.Fetch.MaxBackoff),
	)

	return &ServiceContainer{
		Poller:  search.NewJobPoller(searchClient, pollerOpts...),
		Fetcher: fetcher,
		Parser:  ncbi.NewBlastXMLParser(),
		cfg:     cfg,
		logger:  options.logger,
	}, nil
}

// NewOrchestrator は隔離ストアを開いて SearchOrchestrator を組み立てる
func (c *ServiceContainer) NewOrchestrator(ranking search.RankingConfig, opts ...search.OrchestratorOption) (*search.SearchOrchestrator, error) {
	if c.quarantine == nil {
		store, err := quarantine.NewStore(c.cfg.QuarantineDir)
		if err != nil {
			return nil, fmt.Errorf("隔離ストアの初期化に失敗しました: %w", err)
		}
		c.quarantine = store
	}

	base := []search.OrchestratorOption{
		search.WithOrchestratorLogger(c.logger),
		search.WithMaxParseRetries(c.cfg.ParseMaxRetries),
	}
	return search.NewSearchOrchestrator(
		c.Poller,
		c.Parser,
		c.Fetcher,
		c.quarantine,
		ranking,
		append(base, opts...)...,
	), nil
}

// SinkOptions は出力先の指定
type SinkOptions struct {
	Format sink.Format
	// Output はファイル出力先のパス（postgres では使わない）
	Output string
	// Dump が空でなければテキストダンプも書き出す
	Dump  string
	RunID uuid.UUID
	// Database は実行レコードに残す検索対象データベース名
	Database string
}

// OpenSink は指定された形式の出力先を開く
func (c *ServiceContainer) OpenSink(ctx context.Context, opts SinkOptions) (search.ResultSink, error) {
	primary, err := c.openPrimarySink(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.Dump == "" {
		return primary, nil
	}

	dump, err := sink.CreateTextDump(opts.Dump)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return sink.Multi{primary, dump}, nil
}

func (c *ServiceContainer) openPrimarySink(ctx context.Context, opts SinkOptions) (search.ResultSink, error) {
	if opts.Format != sink.FormatPostgres && opts.Output == "" {
		return nil, fmt.Errorf("%s 形式には出力先のパスが必要です", opts.Format)
	}

	switch opts.Format {
	case sink.FormatCSV:
		return sink.CreateCSV(opts.Output)
	case sink.FormatXLSX:
		return sink.NewXLSXSink(opts.Output)
	case sink.FormatSQLite:
		return sink.OpenSQLite(ctx, opts.Output, opts.RunID)
	case sink.FormatPostgres:
		pool, err := database.Connect(ctx, database.ConnectionParams{
			Host:     c.cfg.Database.Host,
			Port:     c.cfg.Database.Port,
			User:     c.cfg.Database.User,
			Password: c.cfg.Database.Password,
			DBName:   c.cfg.Database.DBName,
			SSLMode:  c.cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
		}
		s, err := sink.NewPostgresSink(ctx, pool, opts.RunID, opts.Database, sink.WithOwnedPool())
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", sink.ErrUnknownFormat, opts.Format)
	}
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() error {
	if c == nil || c.quarantine == nil {
		return nil
	}
	return c.quarantine.Close()
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Config は設定を返す
func (c *ServiceContainer) Config() *config.Config {
	return c.cfg
}
