package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hoken-app/insurance-portal/internal/inbox/reconciler"
	"github.com/hoken-app/insurance-portal/internal/inbox/view"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/pkg/sdk"
	"github.com/robfig/cron/v3"
)

type options struct {
	userID   string
	token    string
	unread   bool
	read     string
	typ      string
	keyword  string
	page     int
	open     string
	watch    bool
	schedule string
}

func main() {
	var opts options
	flag.StringVar(&opts.userID, "user", "", "user id whose inbox is shown (required)")
	flag.StringVar(&opts.token, "token", os.Getenv("INBOX_TOKEN"), "session token sent as the session cookie")
	flag.BoolVar(&opts.unread, "unread", false, "list only unread notifications, as the summary widget does")
	flag.StringVar(&opts.read, "read", "all", "read filter: all, read or unread")
	flag.StringVar(&opts.typ, "type", "", "type filter: info, warning, error, promotion, alert or progress")
	flag.StringVar(&opts.keyword, "keyword", "", "keyword matched against title and summary")
	flag.IntVar(&opts.page, "page", 1, "page to show")
	flag.StringVar(&opts.open, "open", "", "message id to open and mark as read")
	flag.BoolVar(&opts.watch, "watch", false, "reload on a schedule until interrupted")
	flag.StringVar(&opts.schedule, "schedule", "", "watch schedule, overrides inbox.watch_schedule")
	flag.Parse()

	cfg, err := config.Load("inbox")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	log := logger.New(cfg.Logger)

	if opts.userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}
	readFilter, err := view.ParseReadFilter(opts.read)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	typ := sdk.NotificationType(opts.typ)
	if typ != "" && !typ.Valid() {
		fmt.Fprintf(os.Stderr, "unknown type %q\n", opts.typ)
		os.Exit(2)
	}
	if opts.schedule == "" {
		opts.schedule = cfg.Inbox.WatchSchedule
	}

	clientOpts := []sdk.ClientOption{sdk.WithTimeout(cfg.Inbox.RequestTimeout)}
	if opts.token != "" {
		clientOpts = append(clientOpts, sdk.WithSessionCookie(cfg.Auth.SessionCookie, opts.token))
	}
	client := sdk.NewClient(cfg.Inbox.BaseURL, clientOpts...)

	session := reconciler.NewSession(client.Notifications,
		reconciler.WithLogger(log.WithFields(map[string]interface{}{"user_id": opts.userID})),
		reconciler.WithPostTimeout(cfg.Inbox.PostTimeout),
	)
	r := session.Login(opts.userID)

	pager := view.NewPager(cfg.Inbox.PageSize, cfg.Inbox.Locale)
	pager.SetReadFilter(readFilter)
	pager.SetType(typ)
	pager.SetKeyword(opts.keyword)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refresh := func() {
		if opts.unread {
			r.LoadUnread(ctx, opts.userID)
		} else {
			r.Load(ctx, opts.userID)
		}
	}

	refresh()
	state := r.Snapshot()
	page := pager.GoTo(state.List, opts.page)

	if opts.open != "" {
		if _, found := r.Select(opts.open); !found {
			fmt.Fprintf(os.Stderr, "notification %q is not in the list\n", opts.open)
		} else {
			state = r.Snapshot()
			printDetail(os.Stdout, *state.Selected, cfg.Inbox.Locale)
			page = pager.Project(state.List)
		}
	}

	render(os.Stdout, state, page, cfg.Inbox.Locale)

	if opts.watch {
		watch(ctx, log, opts.schedule, func() {
			refresh()
			state := r.Snapshot()
			render(os.Stdout, state, pager.Project(state.List), cfg.Inbox.Locale)
		})
	}

	logoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Inbox.PostTimeout+time.Second)
	defer cancel()
	if err := session.Logout(logoutCtx); err != nil {
		log.Warn("Logout did not wait for every mark-as-read post", "error", err)
	}
}

// watch runs job on schedule until ctx is done
func watch(ctx context.Context, log logger.Logger, schedule string, job func()) {
	location, _ := time.LoadLocation("UTC")
	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, job); err != nil {
		log.Error("Invalid watch schedule", "schedule", schedule, "error", err)
		return
	}

	log.Info("Watching inbox", "schedule", schedule)
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
}

func render(w io.Writer, state reconciler.State, page view.Page, locale string) {
	fmt.Fprintf(w, "\n%s  unread: %d\n", state.UserID, state.UnreadCount)

	if page.Total == 0 {
		fmt.Fprintln(w, "no notifications")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range page.Items {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		important := ""
		if n.IsImportant {
			important = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s\n",
			mark, n.MessageID, important, n.Type, n.DeliveredAt.Format("2006-01-02"), n.Title.Get(locale))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "%d-%d of %d  page %d/%d\n", page.Start, page.End, page.Total, page.Page, page.TotalPages)
}

func printDetail(w io.Writer, n sdk.Notification, locale string) {
	fmt.Fprintf(w, "\n[%s] %s\n%s\n\n%s\n", n.Type, n.Title.Get(locale), n.MessageSummary.Get(locale), n.MessageDetail.Get(locale))
}
