package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/conf"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	subscriptionUsecase *biz.SubscriptionUsecase
}

// newLogger 创建 logger
func newLogger() klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "premium-cron",
	)
}

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置 (cron 进程不需要热加载, 直接读文件)
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}
	if err := bc.Validate(); err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 1. 续费提醒 - 每天上午 10 点执行
	// 本地只读查询, 状态始终以支付服务的 webhook 事件为准
	_, err = cronScheduler.AddFunc("0 0 10 * * *", func() {
		log.Println("[CRON] Starting renewal reminder check...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		subscriptions, total, err := app.subscriptionUsecase.GetExpiringSubscriptions(ctx, 7, 1, 100)
		if err != nil {
			log.Printf("[CRON] Error getting expiring subscriptions: %v", err)
			return
		}

		log.Printf("[CRON] Found %d subscriptions with billing period ending within 7 days", total)
		for _, sub := range subscriptions {
			// TODO: 接入通知渠道后发送续费提醒
			if sub.CurrentPeriodEnd != nil {
				log.Printf("[CRON] Reminder: user %s subscription %s period ends at %s",
					sub.UserID, sub.StripeSubscriptionID, sub.CurrentPeriodEnd.Format("2006-01-02 15:04:05"))
			}
		}
		log.Println("[CRON] Finished renewal reminder check")
	})
	if err != nil {
		log.Printf("Failed to add renewal reminder job: %v", err)
	}

	// 2. Webhook 事件日志清理 - 每天凌晨 2 点执行
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		log.Println("[CRON] Starting webhook event prune...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := app.subscriptionUsecase.PruneWebhookEvents(ctx)
		if err != nil {
			log.Printf("[CRON] Error pruning webhook events: %v", err)
		} else {
			log.Printf("[CRON] Pruned %d webhook events", count)
		}
		log.Println("[CRON] Finished webhook event prune")
	})
	if err != nil {
		log.Printf("Failed to add webhook event prune job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Println("Scheduled jobs:")
	log.Println("  - Renewal reminder:    Every day at 10:00")
	log.Println("  - Webhook event prune: Every day at 02:00")
	log.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
