package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"flexify/config"
	"flexify/cron"
	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/handlers"
	"flexify/models"
	"flexify/routes"
	"flexify/services/admin"
	"flexify/services/booking"
	"flexify/services/geocoding"
	"flexify/services/notification"
	"flexify/services/tasks"
	"flexify/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSandbox(a *app, args []string) error {
	fs := pflag.NewFlagSet("sandbox", pflag.ContinueOnError)
	port := fs.String("port", config.AppConfig.SandboxPort, "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := a.logger.Named("sandbox")

	secret := []byte(config.AppConfig.JWTSecret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		secret = []byte(hex.EncodeToString(buf))
		logger.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}

	repo := sandboxRepo.NewMemoryRepository()
	if err := sandboxRepo.Seed(repo); err != nil {
		return err
	}
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	hb := handlers.NewHandlerBundle(repo, secret, config.AppConfig.AccessTokenTTL(), logger)
	router := routes.NewRouter(hb, routes.Options{RequestsPerSecond: 20, Burst: 40})

	srv := &http.Server{
		Addr:    "0.0.0.0:" + *port,
		Handler: router,
	}
	logger.Sugar().Infof("Starting sandbox on %s (accounts share password %q)", srv.Addr, sandboxRepo.SeedPassword)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signalContext()
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("sandbox failed to start: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Sandbox is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox forced to shutdown: %w", err)
	}
	logger.Info("Sandbox stopped gracefully")
	return nil
}

func runLogin(a *app, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(models.RoleUser), "portal to sign in through: user, provider or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	expected, ok := models.ParseRole(*role)
	if !ok {
		return fmt.Errorf("unknown role %q", *role)
	}
	if *email == "" || *password == "" {
		return errors.New("--email and --password are required")
	}

	resp, err := a.store.Login(context.Background(), *email, *password, expected)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s <%s> (%s)\n", resp.User.Name, resp.User.Email, resp.Role)
	return nil
}

func runRegister(a *app, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm", "", "password confirmation; defaults to --password")
	role := fs.String("role", string(models.RoleUser), "user or provider")
	phone := fs.String("phone", "", "phone number")
	category := fs.String("category", "", "service category key, providers only")
	description := fs.String("description", "", "service description, providers only")
	languages := fs.StringSlice("languages", nil, "spoken languages")
	lat := fs.Float64("lat", 0, "service area latitude, providers only")
	lng := fs.Float64("lng", 0, "service area longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, ok := models.ParseRole(*role)
	if !ok {
		return fmt.Errorf("unknown role %q", *role)
	}
	if !fs.Changed("confirm") {
		*confirm = *password
	}
	reg := models.Registration{
		Name:        *name,
		Email:       *email,
		Password:    *password,
		Role:        r,
		Phone:       *phone,
		Category:    *category,
		Description: *description,
		Languages:   *languages,
	}
	if fs.Changed("lat") || fs.Changed("lng") {
		reg.ServiceArea = &models.Coordinates{Lat: *lat, Lng: *lng}
	}

	resp, err := a.store.Register(context.Background(), reg, *confirm)
	if err != nil {
		return err
	}
	fmt.Printf("Registered and signed in as %s <%s> (%s)\n", resp.User.Name, resp.User.Email, resp.Role)
	if resp.Role == models.RoleProvider {
		fmt.Println("Your provider profile is pending verification.")
	}
	return nil
}

func runLogout(a *app, args []string) error {
	ctx := context.Background()
	if _, err := a.restore(ctx); err != nil {
		return err
	}
	a.store.Logout(ctx)
	fmt.Println("Signed out")
	return nil
}

func runWhoami(a *app, args []string) error {
	sess, err := a.restore(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\nrole: %s\nid:   %s\n", sess.User.Name, sess.User.Email, sess.Role, sess.User.ID)
	return nil
}

func runWatch(a *app, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ch := notification.NewChannel(notification.ChannelOptions{
		URL:    config.AppConfig.SocketURL,
		Logger: a.logger.Named("push"),
		Listener: func(n models.Notification) {
			fmt.Printf("%s  %-24s %s\n", n.Timestamp.Format("15:04:05"), n.Type, n.Message)
		},
	})
	defer ch.Close()
	ch.RequestPermission(ctx)

	unsubscribe := a.store.Subscribe(ch.HandleSession)
	defer unsubscribe()
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}

	if utils.RedisEnabled() {
		worker := cron.NewReminderWorker(cron.WorkerOptions{
			Redis: tasks.RedisOpt(),
			Sink:  ch,
			CurrentUser: func() string {
				if s := a.store.Current(); s != nil {
					return s.User.ID
				}
				return ""
			},
			Logger: a.logger.Named("reminders"),
		})
		worker.Start()
		defer worker.Shutdown()
	}

	fmt.Printf("Watching notifications for %s (%s). Press Ctrl+C to stop.\n", sess.User.Name, sess.Role)
	<-ctx.Done()
	return nil
}

func runBook(a *app, args []string) error {
	fs := pflag.NewFlagSet("book", pflag.ContinueOnError)
	category := fs.String("category", "", "service category key")
	provider := fs.String("provider", "", "book this provider instead of the top recommendation")
	address := fs.String("address", "", "service address")
	lat := fs.Float64("lat", 0, "latitude; skips geocoding together with --lng")
	lng := fs.Float64("lng", 0, "longitude")
	date := fs.String("date", "", "date as YYYY-MM-DD")
	slot := fs.Int("slot", 1, "time slot: 1 morning, 2 afternoon, 3 evening")
	duration := fs.String("duration", string(models.DurationHourly), "hourly, daily, weekly or monthly")
	durationValue := fs.Int("duration-value", 1, "number of duration units")
	urgency := fs.String("urgency", string(models.UrgencyNormal), "normal, urgent or emergency")
	notes := fs.String("notes", "", "special requirements")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, ok := booking.LookupCategory(*category); !ok {
		return fmt.Errorf("unknown category %q", *category)
	}
	if *slot < 1 || *slot > len(booking.TimeSlots) {
		return fmt.Errorf("--slot must be between 1 and %d", len(booking.TimeSlots))
	}

	ctx, stop := signalContext()
	defer stop()
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if sess.Role != models.RoleUser {
		return fmt.Errorf("bookings are made from a user account, signed in as %s", sess.Role)
	}

	w := booking.NewWizard(booking.WizardDeps{
		API:      a.store.Client(),
		Searcher: a.searcher(),
		Geocoder: geocoding.NewNominatim(geocoding.Options{
			BaseURL:   config.AppConfig.GeocoderURL,
			UserAgent: config.AppConfig.GeocoderUserAgent,
			Logger:    a.logger.Named("geocoding"),
		}),
		Reminders: a.reminders(),
		Logger:    a.logger.Named("wizard"),
		Filters: booking.Filters{
			MaxDistanceKm: config.AppConfig.SearchMaxDistanceKm,
			VerifiedOnly:  config.AppConfig.SearchVerifiedOnly,
		},
		UserID: sess.User.ID,
	}, booking.Seed{Category: *category, ProviderID: *provider})
	defer w.Close()

	steps := []func() error{
		func() error { return w.SetDuration(models.Duration(*duration), *durationValue) },
		func() error { return w.SetSpecialRequirements(*notes) },
		w.Next,
		func() error {
			if fs.Changed("lat") || fs.Changed("lng") {
				return w.SetCoordinates(*address, models.Coordinates{Lat: *lat, Lng: *lng})
			}
			return w.SetLocation(ctx, *address)
		},
		func() error { return w.SetSchedule(*date, booking.TimeSlots[*slot-1].Label) },
		w.Next,
		func() error { return w.SetUrgency(models.Urgency(*urgency)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	w.WaitSearches()
	if err := w.SearchError(); err != nil {
		return err
	}
	if *provider == "" {
		rec := w.Recommended()
		if len(rec) == 0 {
			return errors.New("no workers available near that location")
		}
		printRanked(rec)
		if err := w.SelectWorker(rec[0].Provider.ID); err != nil {
			return err
		}
	}
	if err := w.Next(); err != nil {
		return err
	}

	d := w.Draft()
	fmt.Printf("Booking %s with %s on %s, %s\n", d.ServiceCategory, d.SelectedWorker.Name, d.Date, d.TimeSlot)
	fmt.Printf("Base %.0f + urgency %.0f = total %.0f\n", d.BasePrice, d.UrgencyExtra, d.TotalPrice)
	conf, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Booking created: %s\n", conf.BookingID)
	return nil
}

func printRanked(rec []models.RankedProvider) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATING\tDISTANCE\tMATCH")
	for _, r := range rec {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f km\t%.0f%%\n",
			r.Provider.ID, r.Provider.Name, r.Provider.Rating, r.DistanceKm, r.MatchScore*100)
	}
	tw.Flush()
}

var bookingActions = map[string]func(*booking.BookingsClient, context.Context, models.Booking) (*models.Booking, error){
	"accept":   (*booking.BookingsClient).Accept,
	"reject":   (*booking.BookingsClient).Reject,
	"start":    (*booking.BookingsClient).Start,
	"complete": (*booking.BookingsClient).Complete,
	"payment":  (*booking.BookingsClient).AcceptPayment,
	"cancel": func(c *booking.BookingsClient, ctx context.Context, b models.Booking) (*models.Booking, error) {
		return c.Cancel(ctx, b, "")
	},
}

func runBookings(a *app, args []string) error {
	fs := pflag.NewFlagSet("bookings", pflag.ContinueOnError)
	id := fs.String("id", "", "booking to act on")
	action := fs.String("action", "", "accept, reject, start, complete, payment or cancel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	client := booking.NewBookingsClient(a.store.Client())

	if *action != "" {
		act, ok := bookingActions[*action]
		if !ok {
			return fmt.Errorf("unknown action %q", *action)
		}
		if *id == "" {
			return errors.New("--id is required with --action")
		}
		b, err := client.Get(ctx, *id)
		if err != nil {
			return err
		}
		updated, err := act(client, ctx, *b)
		if err != nil {
			return err
		}
		fmt.Printf("Booking %s is now %s\n", updated.ID, updated.Status)
		return nil
	}

	var list []models.Booking
	if sess.Role == models.RoleProvider {
		list, err = client.ProviderBookings(ctx)
	} else {
		list, err = client.MyBookings(ctx)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tDATE\tSLOT\tSTATUS\tAMOUNT")
	for _, b := range list {
		e := booking.DeriveEarnings(b)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.0f\n", b.ID, b.ServiceCategory, b.Date, b.TimeSlot, b.Status, e.Amount)
	}
	tw.Flush()

	if sess.Role == models.RoleProvider {
		sum := booking.SummarizeEarnings(list, nil)
		fmt.Printf("\nEarnings %.0f, platform fees %.0f over %d paid bookings\n",
			sum.TotalEarnings, sum.PlatformFees, sum.PaidBookings)
	}
	if len(list) == 0 {
		a.logger.Debug("No bookings", zap.String("role", string(sess.Role)))
		fmt.Println("No bookings yet.")
	}
	return nil
}

func runAdmin(a *app, args []string) error {
	fs := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	reason := fs.String("reason", "", "rejection reason for reject")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	action := "overview"
	if len(rest) > 0 {
		action = rest[0]
	}
	target := ""
	if len(rest) > 1 {
		target = rest[1]
	}

	ctx := context.Background()
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if sess.Role != models.RoleAdmin {
		return fmt.Errorf("admin commands need an admin session, signed in as %s", sess.Role)
	}
	client := admin.NewClient(a.store.Client())

	needTarget := func() error {
		if target == "" {
			return fmt.Errorf("admin %s needs an id", action)
		}
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch action {
	case "overview":
		ov, err := client.Overview(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "users\t%d\nproviders\t%d\nbookings\t%d\npending verification\t%d\n",
			ov.TotalUsers, ov.TotalProviders, ov.TotalBookings, len(ov.PendingProviders))
	case "users":
		users, err := client.Users(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tBLOCKED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.Blocked)
		}
	case "block", "unblock":
		if err := needTarget(); err != nil {
			return err
		}
		if err := client.SetUserBlocked(ctx, target, action == "block"); err != nil {
			return err
		}
		fmt.Fprintf(tw, "Account %s %sed\n", target, action)
	case "providers", "pending":
		list, err := func() ([]models.ProviderCandidate, error) {
			if action == "pending" {
				return client.PendingProviders(ctx)
			}
			return client.Providers(ctx)
		}()
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTATUS")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.VerificationStatus)
		}
	case "verify":
		if err := needTarget(); err != nil {
			return err
		}
		if err := client.VerifyProvider(ctx, target); err != nil {
			return err
		}
		fmt.Fprintf(tw, "Provider %s verified\n", target)
	case "reject":
		if err := needTarget(); err != nil {
			return err
		}
		if err := client.RejectProvider(ctx, target, *reason); err != nil {
			return err
		}
		fmt.Fprintf(tw, "Provider %s rejected\n", target)
	case "bookings":
		list, err := client.Bookings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tUSER\tPROVIDER\tSERVICE\tSTATUS\tPAYMENT")
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.UserID, b.ProviderID, b.ServiceCategory, b.Status, b.PaymentStatus)
		}
	default:
		return fmt.Errorf("unknown admin action %q", action)
	}
	return nil
}
