package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/japaniel/labelscan/pkg/account"
	"github.com/japaniel/labelscan/pkg/config"
	"github.com/japaniel/labelscan/pkg/db"
	"github.com/japaniel/labelscan/pkg/ingest"
	"github.com/japaniel/labelscan/pkg/mail"
	"github.com/japaniel/labelscan/pkg/ocr"
	_ "github.com/japaniel/labelscan/pkg/ocr/tesseract"
	"github.com/japaniel/labelscan/pkg/reference"
	"github.com/japaniel/labelscan/pkg/scanner"
	"github.com/japaniel/labelscan/pkg/webtext"
)

const importBatchSize = 100

func main() {
	configFlag := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	dbFlag := flag.String("db", "", "Path to SQLite database (overrides database.path)")
	tableFlag := flag.String("table", "", "Harmful ingredient CSV (overrides reference.csv)")
	sourceFlag := flag.String("source", "", "Reference table source: csv or db (overrides reference.source)")
	importFlag := flag.String("import-table", "", "Import a harmful ingredient CSV into the database")
	imageFlag := flag.String("image", "", "Image to analyse; a comma separated list scans a batch")
	urlFlag := flag.String("url", "", "Product page URL or saved HTML file to analyse")
	registerFlag := flag.Bool("register", false, "Register a new account with -user, -email and -password")
	loginFlag := flag.Bool("login", false, "Check the -user and -password credentials")
	userFlag := flag.String("user", "", "Username; scans and -history are recorded for this account")
	emailFlag := flag.String("email", "", "Email address for -register")
	passwordFlag := flag.String("password", "", "Password for -user")
	confirmFlag := flag.String("confirm", "", "Redeem an account confirmation token")
	sendToFlag := flag.String("send-to", "", "Email the report to this address")
	historyFlag := flag.Bool("history", false, "List recorded scans")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	if *tableFlag != "" {
		cfg.Reference.CSV = *tableFlag
	}
	if *sourceFlag != "" {
		cfg.Reference.Source = *sourceFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer conn.Close()
	fmt.Printf("Database initialized at %s\n", cfg.Database.Path)

	svc := account.NewService(conn, logger)
	sender := mail.New(cfg.Mail)

	switch {
	case *importFlag != "":
		fmt.Printf("Importing harmful ingredients from %s...\n", *importFlag)
		n, err := ingest.ImportTable(ctx, conn, reference.CSVSource{Path: *importFlag}, importBatchSize, logger)
		if err != nil {
			logger.Fatal("import failed", zap.Error(err))
		}
		fmt.Printf("Imported %d ingredients.\n", n)
		return

	case *registerFlag:
		flow := account.NewFlow(svc)
		if err := flow.ShowRegister(); err != nil {
			logger.Fatal("register", zap.Error(err))
		}
		reg, err := flow.Register(ctx, *userFlag, *emailFlag, *passwordFlag)
		if err != nil {
			fmt.Printf("Registration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registered %s.\n", reg.User.Username)
		if sender.Enabled() {
			if err := sender.Send(ctx, mail.ConfirmationMessage(reg.User.Email, reg.Token)); err != nil {
				logger.Error("failed to send confirmation", zap.Error(err))
			} else {
				fmt.Printf("Confirmation sent to %s.\n", reg.User.Email)
			}
		} else {
			fmt.Printf("Confirmation token: %s\n", reg.Token)
		}
		return

	case *confirmFlag != "":
		u, err := svc.Confirm(ctx, *confirmFlag)
		if err != nil {
			fmt.Printf("Confirmation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Account %s confirmed.\n", u.Username)
		return
	}

	userID := ""
	if *userFlag != "" || *loginFlag {
		flow := account.NewFlow(svc)
		if err := flow.Login(ctx, *userFlag, *passwordFlag); err != nil {
			fmt.Printf("Login failed: %v\n", err)
			os.Exit(1)
		}
		userID = flow.User().ID
		fmt.Printf("Logged in as %s.\n", flow.User().Username)
		if *loginFlag && *imageFlag == "" && *urlFlag == "" && !*historyFlag {
			return
		}
	}

	if *historyFlag {
		if err := printHistory(conn, userID); err != nil {
			logger.Fatal("failed to list scans", zap.Error(err))
		}
		return
	}

	var src reference.RowSource = reference.CSVSource{Path: cfg.Reference.CSV}
	if cfg.Reference.Source == config.SourceDB {
		src = reference.DBSource{Conn: conn}
	} else if err := reference.EnsureTable(ctx, cfg.Reference.CSV, cfg.Reference.URL, logger); err != nil {
		logger.Warn("reference table unavailable", zap.Error(err))
	}

	var images []string
	for _, p := range strings.Split(*imageFlag, ",") {
		if p = strings.TrimSpace(p); p != "" {
			images = append(images, p)
		}
	}

	if len(images) > 1 {
		analyzer := scanner.NewAnalyzer(src, ocrExtractor(cfg), logger)
		bs := ingest.NewBatchScanner(conn, analyzer, logger)
		bs.Workers = cfg.Batch.Workers
		bs.OnProgress = func(current, total int) {
			fmt.Printf("Scanned %d/%d images\n", current, total)
		}
		outcomes, err := bs.ScanAll(ctx, userID, images)
		for _, o := range outcomes {
			if o.Image == "" {
				continue
			}
			fmt.Printf("\n== %s ==\n", o.Image)
			if o.Err != nil {
				fmt.Println(scanner.Message(o.Err))
				continue
			}
			fmt.Println(o.Report.String())
			mailReport(ctx, logger, sender, *sendToFlag, o.Report)
		}
		if err != nil {
			logger.Fatal("batch scan failed", zap.Error(err))
		}
		return
	}

	var analyzer *scanner.Analyzer
	var selected scanner.ImagePath
	switch {
	case *urlFlag != "":
		analyzer = scanner.NewAnalyzer(src, webtext.NewExtractor(logger), logger)
		selected = scanner.Image(*urlFlag)
	default:
		analyzer = scanner.NewAnalyzer(src, ocrExtractor(cfg), logger)
		if len(images) == 1 {
			selected = scanner.Image(images[0])
		}
	}

	fmt.Println("Analyzing...")
	rep, err := analyzer.Analyze(ctx, selected)
	if path, ok := selected.Get(); ok {
		if _, recErr := ingest.RecordReport(conn, userID, path, rep, err); recErr != nil {
			logger.Warn("failed to record scan", zap.Error(recErr))
		}
	}
	if err != nil {
		fmt.Println(scanner.Message(err))
		logger.Debug("analysis failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println(rep.String())
	mailReport(ctx, logger, sender, *sendToFlag, rep)
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func ocrExtractor(cfg *config.Config) scanner.OCRExtractor {
	return scanner.OCRExtractor{
		Options: []ocr.InputOption{
			ocr.WithLanguages(cfg.OCR.Languages...),
			ocr.WithTesseractPSM(cfg.OCR.PSM),
		},
		Timeout: cfg.OCR.Timeout,
	}
}

func mailReport(ctx context.Context, logger *zap.Logger, sender *mail.Sender, to string, rep *scanner.Report) {
	if to == "" {
		return
	}
	if !sender.Enabled() {
		logger.Warn("mail is disabled, report not sent", zap.String("to", to))
		return
	}
	msg, err := mail.ReportMessage(to, rep)
	if err == nil {
		err = sender.Send(ctx, msg)
	}
	if err != nil {
		logger.Error("failed to send report", zap.String("to", to), zap.Error(err))
		return
	}
	fmt.Printf("Report sent to %s.\n", to)
}

func printHistory(conn *sql.DB, userID string) error {
	scans, err := db.ListScans(conn, userID)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Println("No scans recorded.")
		return nil
	}
	for _, s := range scans {
		status := "ok"
		if s.Error != "" {
			status = "error: " + s.Error
		}
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", s.ID, s.ScannedAt.Format("2006-01-02 15:04:05"), s.Image, status, s.Matches)
	}
	return nil
}

