package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"

	"libris-backend/internal/cache"
	"libris-backend/internal/config"
	"libris-backend/internal/domain"
	"libris-backend/internal/ledger"
	"libris-backend/internal/logger"
	"libris-backend/internal/repository/postgres"
	"libris-backend/internal/service"
)

const usage = `Usage: libris <command> <subcommand> [flags]

Commands:
  users    list | create | activate | deactivate
  books    list | add | show | remove
  loans    list | create | return | renew | overdue | show
  system   stats | reconcile | flush-cache

Run 'libris <command> <subcommand> -h' for subcommand flags.
`

type app struct {
	cfg     *config.Config
	cache   *cache.Cache
	ledger  *ledger.Ledger
	userSvc service.UserService
	bookSvc service.BookService
	loanSvc service.LoanService
}

func main() {
	configPath := os.Getenv("LIBRIS_CONFIG")
	if configPath == "" {
		configPath = "config/config.dev.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize("warn", cfg.Log.Format)

	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()
	store := postgres.NewStore(db)
	c := cache.New(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.ExpirySeconds)*time.Second)
	ldg := ledger.New(store, loanPolicy(cfg))

	a := &app{
		cfg:     cfg,
		cache:   c,
		ledger:  ldg,
		userSvc: service.NewUserService(store.UserRepository),
		bookSvc: service.NewBookService(store.BookRepository, store.LoanRepository, ldg, c),
		loanSvc: service.NewLoanService(ldg, store.LoanRepository, c),
	}

	command, subcommand, args := os.Args[1], os.Args[2], os.Args[3:]
	if err := a.run(ctx, command, subcommand, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command, subcommand string, args []string) error {
	switch command {
	case "users":
		return a.runUsers(ctx, subcommand, args)
	case "books":
		return a.runBooks(ctx, subcommand, args)
	case "loans":
		return a.runLoans(ctx, subcommand, args)
	case "system":
		return a.runSystem(ctx, subcommand, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) runUsers(ctx context.Context, subcommand string, args []string) error {
	switch subcommand {
	case "list":
		fs := flag.NewFlagSet("users list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 50, "page size")
		fs.Parse(args)

		users, total, err := a.userSvc.List(ctx, int32(*page), int32(*size))
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.Role, u.Active)
		}
		w.Flush()
		fmt.Printf("Total: %d\n", total)
		return nil

	case "create":
		fs := flag.NewFlagSet("users create", flag.ExitOnError)
		email := fs.String("email", "", "email address (required)")
		username := fs.String("username", "", "username (required)")
		password := fs.String("password", "", "password (required)")
		firstName := fs.String("first-name", "", "first name")
		lastName := fs.String("last-name", "", "last name")
		role := fs.String("role", "MEMBER", "role: ADMIN, LIBRARIAN or MEMBER")
		fs.Parse(args)

		if *email == "" || *username == "" || *password == "" {
			return fmt.Errorf("-email, -username and -password are required")
		}
		user := &domain.User{
			Email:     *email,
			Username:  *username,
			FirstName: *firstName,
			LastName:  *lastName,
			Role:      domain.UserRole(*role),
			Active:    true,
		}
		if err := a.userSvc.Create(ctx, user, *password); err != nil {
			return err
		}
		fmt.Printf("Created user %d (%s)\n", user.ID, user.Username)
		return nil

	case "activate", "deactivate":
		fs := flag.NewFlagSet("users "+subcommand, flag.ExitOnError)
		id := fs.Int("id", 0, "user id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		if err := a.userSvc.SetActive(ctx, int32(*id), subcommand == "activate"); err != nil {
			return err
		}
		fmt.Printf("User %d %sd\n", *id, subcommand)
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func (a *app) runBooks(ctx context.Context, subcommand string, args []string) error {
	switch subcommand {
	case "list":
		fs := flag.NewFlagSet("books list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 50, "page size")
		query := fs.String("q", "", "search query")
		fs.Parse(args)

		var (
			books []domain.Book
			total int32
			err   error
		)
		if *query != "" {
			books, total, err = a.bookSvc.Search(ctx, *query, "", int32(*page), int32(*size))
		} else {
			books, total, err = a.bookSvc.List(ctx, int32(*page), int32(*size))
		}
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "ID\tISBN\tTITLE\tAUTHOR\tAVAILABLE\tTOTAL")
		for _, b := range books {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
				b.ID, b.ISBN, b.Title, b.Author, b.AvailableCopies, b.TotalCopies)
		}
		w.Flush()
		fmt.Printf("Total: %d\n", total)
		return nil

	case "add":
		fs := flag.NewFlagSet("books add", flag.ExitOnError)
		isbn := fs.String("isbn", "", "ISBN (required)")
		title := fs.String("title", "", "title (required)")
		author := fs.String("author", "", "author (required)")
		category := fs.String("category", "", "category")
		copies := fs.Int("copies", 1, "total copies")
		fs.Parse(args)

		if *isbn == "" || *title == "" || *author == "" {
			return fmt.Errorf("-isbn, -title and -author are required")
		}
		book := &domain.Book{
			ISBN:        *isbn,
			Title:       *title,
			Author:      *author,
			Category:    *category,
			TotalCopies: int32(*copies),
		}
		if err := a.bookSvc.Add(ctx, book); err != nil {
			return err
		}
		fmt.Printf("Added book %d (%s)\n", book.ID, book.Title)
		return nil

	case "show":
		fs := flag.NewFlagSet("books show", flag.ExitOnError)
		id := fs.Int("id", 0, "book id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		book, err := a.bookSvc.Get(ctx, int32(*id))
		if err != nil {
			return err
		}
		fmt.Printf("ID:        %d\n", book.ID)
		fmt.Printf("ISBN:      %s\n", book.ISBN)
		fmt.Printf("Title:     %s\n", book.Title)
		fmt.Printf("Author:    %s\n", book.Author)
		fmt.Printf("Category:  %s\n", book.Category)
		fmt.Printf("Available: %d of %d\n", book.AvailableCopies, book.TotalCopies)
		return nil

	case "remove":
		fs := flag.NewFlagSet("books remove", flag.ExitOnError)
		id := fs.Int("id", 0, "book id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		if err := a.bookSvc.Delete(ctx, int32(*id)); err != nil {
			return err
		}
		fmt.Printf("Removed book %d\n", *id)
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func (a *app) runLoans(ctx context.Context, subcommand string, args []string) error {
	switch subcommand {
	case "list":
		fs := flag.NewFlagSet("loans list", flag.ExitOnError)
		userID := fs.Int("user", 0, "filter by user id")
		bookID := fs.Int("book", 0, "filter by book id")
		open := fs.Bool("open", false, "open loans only")
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 50, "page size")
		fs.Parse(args)

		loans, total, err := a.loanSvc.List(ctx, int32(*userID), int32(*bookID), *open, int32(*page), int32(*size))
		if err != nil {
			return err
		}
		printLoans(loans)
		fmt.Printf("Total: %d\n", total)
		return nil

	case "create":
		fs := flag.NewFlagSet("loans create", flag.ExitOnError)
		userID := fs.Int("user", 0, "user id (required)")
		bookID := fs.Int("book", 0, "book id (required)")
		days := fs.Int("days", 0, "loan period in days (0 = policy default)")
		fs.Parse(args)

		if *userID <= 0 || *bookID <= 0 {
			return fmt.Errorf("-user and -book are required")
		}
		loan, err := a.loanSvc.Borrow(ctx, int32(*userID), int32(*bookID), int32(*days))
		if err != nil {
			return err
		}
		fmt.Printf("Created loan %d, due %s\n", loan.ID, loan.DueDate.Format("2006-01-02"))
		return nil

	case "return":
		fs := flag.NewFlagSet("loans return", flag.ExitOnError)
		id := fs.Int("id", 0, "loan id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		loan, err := a.loanSvc.Return(ctx, int32(*id))
		if err != nil {
			return err
		}
		if loan.FineCents > 0 {
			fmt.Printf("Returned loan %d, fine due: $%.2f\n", loan.ID, float64(loan.FineCents)/100)
		} else {
			fmt.Printf("Returned loan %d\n", loan.ID)
		}
		return nil

	case "renew":
		fs := flag.NewFlagSet("loans renew", flag.ExitOnError)
		id := fs.Int("id", 0, "loan id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		loan, err := a.loanSvc.Renew(ctx, int32(*id))
		if err != nil {
			return err
		}
		fmt.Printf("Renewed loan %d, new due date %s (renewal %d)\n",
			loan.ID, loan.DueDate.Format("2006-01-02"), loan.RenewalCount)
		return nil

	case "overdue":
		fs := flag.NewFlagSet("loans overdue", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 50, "page size")
		fs.Parse(args)

		loans, total, err := a.loanSvc.ListOverdue(ctx, int32(*page), int32(*size))
		if err != nil {
			return err
		}
		printLoans(loans)
		fmt.Printf("Total overdue: %d\n", total)
		return nil

	case "show":
		fs := flag.NewFlagSet("loans show", flag.ExitOnError)
		id := fs.Int("id", 0, "loan id (required)")
		fs.Parse(args)
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		loan, err := a.loanSvc.Get(ctx, int32(*id))
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %d\n", loan.ID)
		fmt.Printf("User:     %d\n", loan.UserID)
		fmt.Printf("Book:     %d\n", loan.BookID)
		fmt.Printf("Loaned:   %s\n", loan.LoanDate.Format("2006-01-02"))
		fmt.Printf("Due:      %s\n", loan.DueDate.Format("2006-01-02"))
		fmt.Printf("Status:   %s\n", loan.StatusAt(time.Now().UTC()))
		fmt.Printf("Renewals: %d\n", loan.RenewalCount)
		if loan.ReturnDate != nil {
			fmt.Printf("Returned: %s\n", loan.ReturnDate.Format("2006-01-02"))
		}
		if loan.FineCents > 0 {
			fmt.Printf("Fine:     $%.2f (paid: %t)\n", float64(loan.FineCents)/100, loan.FinePaid)
		}
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func (a *app) runSystem(ctx context.Context, subcommand string, args []string) error {
	switch subcommand {
	case "stats":
		stats, err := a.loanSvc.Statistics(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Total loans:    %d\n", stats.Total)
		fmt.Printf("Active loans:   %d\n", stats.Active)
		fmt.Printf("Overdue loans:  %d\n", stats.Overdue)
		fmt.Printf("Returned loans: %d\n", stats.Returned)
		return nil

	case "reconcile":
		fs := flag.NewFlagSet("system reconcile", flag.ExitOnError)
		bookID := fs.Int("book", 0, "book id (required)")
		fs.Parse(args)
		if *bookID <= 0 {
			return fmt.Errorf("-book is required")
		}
		available, err := a.ledger.RecomputeAvailability(ctx, int32(*bookID))
		if err != nil {
			return err
		}
		fmt.Printf("Book %d availability recomputed: %d\n", *bookID, available)
		return nil

	case "flush-cache":
		if !a.cache.Enabled() {
			fmt.Println("Cache is disabled")
			return nil
		}
		a.cache.FlushAll(ctx)
		fmt.Println("Cache flushed")
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func printLoans(loans []domain.Loan) {
	now := time.Now().UTC()
	w := newTable()
	fmt.Fprintln(w, "ID\tUSER\tBOOK\tDUE\tSTATUS\tRENEWALS")
	for _, l := range loans {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%d\n",
			l.ID, l.UserID, l.BookID, l.DueDate.Format("2006-01-02"), l.StatusAt(now), l.RenewalCount)
	}
	w.Flush()
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// loanPolicy builds the ledger policy from configuration.
func loanPolicy(cfg *config.Config) ledger.Policy {
	limits := make(map[domain.UserRole]int32, len(cfg.LoanPolicy.LoanLimits))
	for role, limit := range cfg.LoanPolicy.LoanLimits {
		limits[domain.UserRole(role)] = int32(limit)
	}
	return ledger.Policy{
		LoanPeriodDays: int32(cfg.LoanPolicy.PeriodDays),
		ExtensionDays:  int32(cfg.LoanPolicy.ExtensionDays),
		MaxRenewals:    int32(cfg.LoanPolicy.MaxRenewals),
		DailyFineCents: int32(cfg.LoanPolicy.DailyFineCents),
		LoanLimits:     limits,
	}
}
