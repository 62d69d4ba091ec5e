package di

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapp "github.com/trezcool/classroom/apps/server/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/progress"
	logsvc "github.com/trezcool/classroom/services/logger"
	"github.com/trezcool/classroom/storage/database"
	sqlxrepos "github.com/trezcool/classroom/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger *logsvc.RollbarLogger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf        *core.Config
	Logger      *logsvc.RollbarLogger
	AccountSvc  *account.Service
	CourseSvc   *course.Service
	ProgressSvc *progress.Service
	Validate    *validator.Validate
	Translator  ut.Translator
}

func newLogger(name string) func(conf *core.Config) (*logsvc.RollbarLogger, error) {
	return func(conf *core.Config) (*logsvc.RollbarLogger, error) {
		zl, err := logsvc.NewZap(conf.Debug)
		if err != nil {
			return nil, errors.Wrap(err, "building zap logger")
		}
		logger := logsvc.NewRollbarLogger(zl.Named(name), conf)
		logger.Enable(!conf.Debug && conf.RollbarToken != "")
		return logger, nil
	}
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, database.NewTxDB(db)
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate
}

func newProgressCleaner(repo progress.Repository) account.ProgressCleaner {
	return repo
}

func newCourseGetter(svc *course.Service) progress.CourseGetter {
	return svc
}

func newAccountGetter(svc *account.Service) progress.AccountGetter {
	return svc
}

func newServerDeps(p ServerParams) echoapp.Deps {
	return echoapp.Deps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		AccountSvc:  p.AccountSvc,
		CourseSvc:   p.CourseSvc,
		ProgressSvc: p.ProgressSvc,
		Validate:    p.Validate,
		Translator:  p.Translator,
	}
}

// New returns a new dependency injection dig.Container
func New(opts ...dig.Option) *dig.Container {
	c := dig.New(opts...)

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger("server")))
	must(c.Provide(newLogger("db"), dig.Name("dbLogger")))
	must(c.Provide(newDB))

	must(c.Provide(sqlxrepos.NewAccountRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(sqlxrepos.NewProgressRepository))
	must(c.Provide(newProgressCleaner))

	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))

	must(c.Provide(account.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newCourseGetter))
	must(c.Provide(newAccountGetter))
	must(c.Provide(progress.NewService))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapp.NewServer))

	return c
}

// Visualize writes the dependency graph of c in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
