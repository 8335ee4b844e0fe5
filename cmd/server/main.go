// Command server wires the matching engine to its write-ahead log,
// snapshot store and optional Kafka trade broadcaster, then reads
// line-oriented commands from stdin:
//
//	place <id> <buy|sell> <gtc|ioc|fok|day|mkt> <price> <qty>
//	cancel <id>
//	modify <id> <buy|sell> <price> <qty>
//	depth [n]
//	size
//	quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"matchbook/book"
	"matchbook/jobs/broadcaster"
	"matchbook/service"
	"matchbook/snapshot"
	"matchbook/wal"
)

func main() {
	var (
		walDir       = flag.String("wal", "data/wal", "write-ahead log directory")
		snapDir      = flag.String("snapshots", "data/snapshots", "snapshot store directory")
		snapInterval = flag.Duration("snapshot-interval", 5*time.Minute, "interval between snapshots")
		expiryHour   = flag.Int("expiry-hour", book.DefaultExpiryHour, "local hour at which day orders expire")
		brokers      = flag.String("brokers", "", "comma-separated Kafka brokers for trade broadcasting (disabled if empty)")
		topic        = flag.String("topic", "trades", "Kafka topic for trade events")
	)
	flag.Parse()

	if err := os.MkdirAll(*walDir, 0o755); err != nil {
		log.Fatalf("create wal dir: %v", err)
	}

	store, err := snapshot.OpenStore(*snapDir)
	if err != nil {
		log.Fatalf("open snapshot store: %v", err)
	}
	defer store.Close()

	b := book.New(book.WithExpiryHour(*expiryHour))
	defer b.Close()

	lastSeq, err := service.Restore(b, store, *walDir)
	if err != nil {
		log.Fatalf("restore: %v", err)
	}
	if lastSeq > 0 {
		log.Printf("restored book: %d resting orders, seq=%d", b.Size(), lastSeq)
	}

	w, err := wal.Open(wal.Config{Dir: *walDir})
	if err != nil {
		log.Fatalf("open wal: %v", err)
	}
	defer w.Close()

	var pub service.Publisher
	if *brokers != "" {
		bc, err := broadcaster.New(strings.Split(*brokers, ","), *topic)
		if err != nil {
			log.Fatalf("connect broadcaster: %v", err)
		}
		defer bc.Close()
		pub = bc
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if bc, ok := pub.(*broadcaster.Broadcaster); ok {
		bc.Start(ctx)
	}

	svc := service.New(b, w, pub)
	svc.StartSnapshotJob(ctx, store, *snapInterval)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
		os.Stdin.Close()
	}()

	log.Printf("engine ready, wal=%s snapshots=%s", *walDir, *snapDir)
	console(svc)
	log.Printf("shutting down")
}

func console(svc *service.OrderService) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "quit" {
			return
		}
		if err := dispatch(svc, fields); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatch(svc *service.OrderService, fields []string) error {
	switch fields[0] {
	case "place":
		if len(fields) != 6 {
			return fmt.Errorf("usage: place <id> <buy|sell> <gtc|ioc|fok|day|mkt> <price> <qty>")
		}
		id, err := parseID(fields[1])
		if err != nil {
			return err
		}
		side, err := parseSide(fields[2])
		if err != nil {
			return err
		}
		typ, err := parseType(fields[3])
		if err != nil {
			return err
		}
		price, qty, err := parsePriceQty(fields[4], fields[5])
		if err != nil {
			return err
		}
		trades, err := svc.Submit(typ, id, side, price, qty)
		if err != nil {
			return err
		}
		printTrades(trades)

	case "cancel":
		if len(fields) != 2 {
			return fmt.Errorf("usage: cancel <id>")
		}
		id, err := parseID(fields[1])
		if err != nil {
			return err
		}
		return svc.Cancel(id)

	case "modify":
		if len(fields) != 5 {
			return fmt.Errorf("usage: modify <id> <buy|sell> <price> <qty>")
		}
		id, err := parseID(fields[1])
		if err != nil {
			return err
		}
		side, err := parseSide(fields[2])
		if err != nil {
			return err
		}
		price, qty, err := parsePriceQty(fields[3], fields[4])
		if err != nil {
			return err
		}
		trades, err := svc.Modify(book.OrderModify{ID: id, Side: side, Price: price, Quantity: qty})
		if err != nil {
			return err
		}
		printTrades(trades)

	case "depth":
		n := 10
		if len(fields) == 2 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("bad depth %q", fields[1])
			}
			n = v
		}
		printDepth(svc, n)

	case "size":
		fmt.Println(svc.Size())

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func printTrades(trades []book.Trade) {
	for _, tr := range trades {
		fmt.Printf("trade %d/%d %d @ %d\n", tr.Bid.OrderID, tr.Ask.OrderID, tr.Bid.Quantity, tr.Ask.Price)
	}
}

func printDepth(svc *service.OrderService, n int) {
	asks := svc.AskLevels(n)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Printf("  ask %6d x %d\n", asks[i].Price, asks[i].Quantity)
	}
	for _, lvl := range svc.BidLevels(n) {
		fmt.Printf("  bid %6d x %d\n", lvl.Price, lvl.Quantity)
	}
}

func parseID(s string) (book.OrderID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad order id %q", s)
	}
	return book.OrderID(v), nil
}

func parseSide(s string) (book.Side, error) {
	switch strings.ToLower(s) {
	case "buy", "bid", "b":
		return book.Buy, nil
	case "sell", "ask", "s":
		return book.Sell, nil
	}
	return 0, fmt.Errorf("bad side %q", s)
}

func parseType(s string) (book.OrderType, error) {
	switch strings.ToLower(s) {
	case "gtc":
		return book.GoodTillCancel, nil
	case "ioc":
		return book.FillAndKill, nil
	case "fok":
		return book.FillOrKill, nil
	case "day", "gfd":
		return book.GoodForDay, nil
	case "mkt", "market":
		return book.Market, nil
	}
	return 0, fmt.Errorf("bad order type %q", s)
}

func parsePriceQty(ps, qs string) (price, qty int64, err error) {
	price, err = strconv.ParseInt(ps, 10, 64)
	if err != nil || price < 0 {
		return 0, 0, fmt.Errorf("bad price %q", ps)
	}
	qty, err = strconv.ParseInt(qs, 10, 64)
	if err != nil || qty <= 0 {
		return 0, 0, fmt.Errorf("bad quantity %q", qs)
	}
	return price, qty, nil
}
