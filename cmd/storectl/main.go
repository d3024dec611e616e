package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/api"
	"github.com/dreamsneakers/storeclient/internal/config"
	"github.com/dreamsneakers/storeclient/internal/notify"
	"github.com/dreamsneakers/storeclient/internal/store"
)

func usage() {
	fmt.Println("Usage: go run cmd/storectl/main.go <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register <email> <password>")
	fmt.Println("  login <email> <password>      prints a token for API_TOKEN")
	fmt.Println("  products")
	fmt.Println("  cart")
	fmt.Println("  add <productId> [quantity]")
	fmt.Println("  update <itemId> <quantity>")
	fmt.Println("  remove <itemId>")
	fmt.Println("  checkout")
	fmt.Println("  orders")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]
	args := os.Args[2:]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sink := notify.NewLogNotifier(logger)
	tokens := store.NewTokenStore(cfg.API.Token)
	client := api.NewClient(cfg.API, tokens, logger)
	manager := store.New(client, sink, logger)
	catalog := store.NewCatalog(client, sink, logger)
	session := store.NewSession(client, tokens, sink, logger)

	ctx := context.Background()

	switch command {
	case "register":
		if len(args) < 2 {
			usage()
		}
		if session.Register(ctx, args[0], args[1]) {
			fmt.Println("Account created. Log in to get a token.")
		}

	case "login":
		if len(args) < 2 {
			usage()
		}
		if session.Login(ctx, args[0], args[1]) {
			fmt.Printf("Logged in. Export this for subsequent commands:\n\n")
			fmt.Printf("API_TOKEN=%s\n", tokens.Token())
		}

	case "products":
		catalog.FetchProducts(ctx, false)
		for _, p := range catalog.Products() {
			fmt.Printf("%-20s %-10s $%.2f (stock %d)\n", p.Name, p.Brand, p.Price, p.Stock)
			for _, v := range p.Variants {
				fmt.Printf("    variant %d: %s / %.0f (stock %d)\n", v.VariantID, v.Color, v.Size, v.Stock)
			}
		}

	case "cart":
		manager.FetchCart(ctx, false)
		printCart(manager)

	case "add":
		if len(args) < 1 {
			usage()
		}
		productID := parseID(args[0])
		quantity := 1
		if len(args) > 1 {
			quantity, _ = strconv.Atoi(args[1])
		}
		manager.AddItem(ctx, productID, quantity)
		printCart(manager)

	case "update":
		if len(args) < 2 {
			usage()
		}
		quantity, _ := strconv.Atoi(args[1])
		manager.UpdateItem(ctx, parseID(args[0]), quantity)
		printCart(manager)

	case "remove":
		if len(args) < 1 {
			usage()
		}
		manager.RemoveItem(ctx, parseID(args[0]))
		printCart(manager)

	case "checkout":
		manager.Checkout(ctx)
		printCart(manager)

	case "orders":
		manager.FetchOrders(ctx, false)
		for _, o := range manager.Orders() {
			fmt.Printf("Order %d [%s] $%.2f\n", o.ID, o.Status, o.TotalPrice)
			for _, line := range o.Items {
				fmt.Printf("    %dx %s %s @ $%.2f\n", line.Quantity, line.Product.Brand, line.Product.Name, line.PriceAtPurchase)
			}
		}

	default:
		usage()
	}

	if msg := manager.Err(); msg != "" {
		os.Exit(1)
	}
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid id %q\n", s)
		os.Exit(1)
	}
	return id
}

func printCart(manager *store.Manager) {
	cart := manager.Cart()
	if cart == nil {
		fmt.Println("No cart fetched.")
		return
	}
	if len(cart.Items) == 0 {
		fmt.Println("Cart is empty.")
		return
	}
	for _, line := range cart.Items {
		fmt.Printf("item %d: %dx product %d", line.ItemID, line.Quantity, line.ProductID)
		if line.Name != "" {
			fmt.Printf(" (%s %s, %s/%.0f)", line.Brand, line.Name, line.Color, line.Size)
		}
		fmt.Printf(" = $%.2f\n", line.Total)
	}
	fmt.Printf("Total: %d items, $%.2f\n", cart.TotalItems, cart.TotalPrice)
}
