package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/mkartavenko/taskhub/internal/client/api"
	"github.com/mkartavenko/taskhub/internal/client/config"
	"github.com/mkartavenko/taskhub/internal/client/creds"
	"github.com/mkartavenko/taskhub/internal/client/models"
	"github.com/mkartavenko/taskhub/internal/client/session"
	"github.com/mkartavenko/taskhub/internal/logging"

	_ "modernc.org/sqlite"
)

// TaskAPI is the slice of the api.Client the task commands depend on.
type TaskAPI interface {
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, in api.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, in api.TaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type App struct {
	config  *config.Config
	session *session.Manager
	tasks   TaskAPI
	store   creds.Store
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := creds.OpenDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing credential database", "error", err)
		return nil, err
	}
	store := creds.NewSQLiteStore(db)

	apiClient := api.NewClient(cfg.ServerEndpointAddr, store,
		api.WithLogger(log),
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)

	out := os.Stdout
	mgr := session.NewManager(apiClient, store, log, &printNotifier{w: out})
	// a terminally failed renewal drops the REPL back to the login prompt
	apiClient.OnAuthExpired(mgr.HandleAuthExpired)

	return &App{
		config:  cfg,
		session: mgr,
		tasks:   apiClient,
		store:   store,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     out,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	a.session.Bootstrap(ctx)
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.session.State().IsAuthenticated
}
