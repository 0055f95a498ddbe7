package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ffportal/ffsubmit/cmd/ffportald/config"
	"github.com/ffportal/ffsubmit/cmd/ffportald/handlers"
	"github.com/ffportal/ffsubmit/cmd/ffportald/store"
	"github.com/ffportal/ffsubmit/pkg/buildtime"
	"github.com/ffportal/ffsubmit/pkg/schema"
	"github.com/ffportal/ffsubmit/pkg/utils/echoutil"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	listen := flag.String("listen", ":8000", "address to listen")
	configPath := flag.String("config", "", "portal config path (users and initial items)")
	schemasPath := flag.String("schemas", "", "schema file path (YAML or JSON). reloaded when modified")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	issueFor := flag.String("issue-token", "", "print a bearer token for the user with this email, then quit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens issued by --issue-token")
	pversion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.String())
		return
	}

	if *configPath == "" || *schemasPath == "" {
		log.Fatalln("both of --config and --schemas are required")
	}
	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}
	auth := handlers.NewAuthenticator(conf.Users, conf.TokenSecret)

	if *issueFor != "" {
		token, err := auth.IssueToken(*issueFor, *tokenTTL, time.Now())
		if err != nil {
			log.Fatalf("can not issue a token: %s", err)
		}
		fmt.Println(token)
		return
	}

	set, err := schema.LoadFile(*schemasPath)
	if err != nil {
		log.Fatalf("can not read schemas: %s", err)
	}
	st := store.New(set)
	for _, u := range conf.Users {
		if err := st.Seed(u.Item()); err != nil {
			log.Fatalf("can not register user %s: %s", u.Email, err)
		}
	}
	for _, it := range conf.Items {
		if err := st.Seed(it); err != nil {
			log.Fatalf("can not register item: %s", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(middleware.Recover())
	e.Use(echoutil.AccessLog)
	handlers.Register(e, st, auth)

	log.Println("registered routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := store.WatchSchemas(ctx, st, *schemasPath, func(err error) {
			e.Logger.Errorf("schemas are not reloaded: %s", err)
		}); err != nil {
			e.Logger.Errorf("can not watch schemas: %s", err)
		}
	}()

	go func() {
		<-ctx.Done()
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown: %s", err)
		}
	}()

	cert, key := *pcert, *pkey
	if cert != "" && key != "" {
		err = e.StartTLS(*listen, cert, key)
	} else {
		err = e.Start(*listen)
	}
	if err != nil && ctx.Err() == nil {
		e.Logger.Fatal(err)
	}
}
