package main

import (
	"context"
	"fmt"
	"time"

	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/common/database"
	"github.com/uma-arai/sbcntr-hostel/internal/repository"
	"github.com/uma-arai/sbcntr-hostel/internal/service/notification"
	"go.uber.org/zap"
)

// pollInterval はリアルタイムチャネルがない場合の再取得間隔です
const pollInterval = 30 * time.Second

func (a *app) notificationCommands() map[string]command {
	return map[string]command{
		"list": {
			usage: "",
			roles: anyRole,
			run:   a.listNotifications,
		},
		"watch": {
			usage: "",
			roles: anyRole,
			run:   a.watchNotifications,
		},
		"read": {
			usage: "<notification-id>",
			roles: anyRole,
			run:   a.markNotificationRead,
		},
		"read-all": {
			usage: "",
			roles: anyRole,
			run:   a.markAllNotificationsRead,
		},
		"delete": {
			usage: "<notification-id>",
			roles: anyRole,
			run:   a.deleteNotification,
		},
	}
}

// defaultFeedSources は設定に応じて REST か Postgres を通知の取得元にします
func (a *app) defaultFeedSources(ctx context.Context) (notification.Store, notification.LiveSource, func(), error) {
	if a.cfg.Notification.Source == config.NotificationSourceDB {
		db, err := database.NewDB(a.cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create database connection: %w", err)
		}
		store := repository.NewNotificationRepository(repository.NewDB(db.DB, a.logger))
		live := repository.NewNotificationListener(a.cfg.DB.DSN(), a.logger)
		return store, live, func() { db.Close() }, nil
	}

	var live notification.LiveSource
	if a.cfg.API.RealtimeURL != "" {
		live = api.NewRealtimeSubscriber(a.cfg.API.RealtimeURL, a.session, a.logger)
	}
	return a.client, live, func() {}, nil
}

// withFeed は読み込み済みのフィードを fn に渡します
func (a *app) withFeed(ctx context.Context, fn func(*notification.Feed, notification.LiveSource) error) error {
	store, live, cleanup, err := a.feedSources(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	feed := notification.NewFeed(store, a.session.UserID, a.cfg.Notification.Limit, a.toasts, a.logger)
	if err := feed.Load(ctx); err != nil {
		return err
	}
	return fn(feed, live)
}

func (a *app) printFeed(feed *notification.Feed) error {
	w := a.table()
	fmt.Fprintln(w, "ID\tREAD\tTYPE\tTITLE\tCREATED")
	for _, n := range feed.Items() {
		read := " "
		if n.IsRead {
			read = "x"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, read, n.Type, n.Title, formatTime(n.CreatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d unread\n", feed.Unread())
	return nil
}

func (a *app) listNotifications(ctx context.Context, args []string) error {
	if err := parseFlags(a.newFlags("notifications list"), args); err != nil {
		return err
	}
	return a.withFeed(ctx, func(feed *notification.Feed, _ notification.LiveSource) error {
		return a.printFeed(feed)
	})
}

func (a *app) watchNotifications(ctx context.Context, args []string) error {
	if err := parseFlags(a.newFlags("notifications watch"), args); err != nil {
		return err
	}
	return a.withFeed(ctx, func(feed *notification.Feed, live notification.LiveSource) error {
		if err := a.printFeed(feed); err != nil {
			return err
		}
		if live == nil {
			a.logger.Info("No live channel configured, polling", zap.Duration("interval", pollInterval))
			return feed.Poll(ctx, pollInterval)
		}
		return feed.Run(ctx, live)
	})
}

func (a *app) markNotificationRead(ctx context.Context, args []string) error {
	id, err := parseWithID(a.newFlags("notifications read"), args)
	if err != nil {
		return err
	}
	return a.withFeed(ctx, func(feed *notification.Feed, _ notification.LiveSource) error {
		cmd, err := feed.MarkRead(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s: %d unread\n", cmd.Kind, cmd.Status, feed.Unread())
		return nil
	})
}

func (a *app) markAllNotificationsRead(ctx context.Context, args []string) error {
	if err := parseFlags(a.newFlags("notifications read-all"), args); err != nil {
		return err
	}
	return a.withFeed(ctx, func(feed *notification.Feed, _ notification.LiveSource) error {
		cmd, err := feed.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s: %d unread\n", cmd.Kind, cmd.Status, feed.Unread())
		return nil
	})
}

func (a *app) deleteNotification(ctx context.Context, args []string) error {
	id, err := parseWithID(a.newFlags("notifications delete"), args)
	if err != nil {
		return err
	}
	return a.withFeed(ctx, func(feed *notification.Feed, _ notification.LiveSource) error {
		cmd, err := feed.Delete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s: %d left\n", cmd.Kind, cmd.Status, len(feed.Items()))
		return nil
	})
}
