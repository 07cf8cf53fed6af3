package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"BankAgent/sdk/go/bankagent"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "bank assistant address")
	message := flag.String("message", "显示所有账户", "message to send")
	flag.Parse()

	client, err := bankagent.NewClient(*baseURL, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	accounts, err := client.Accounts(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, account := range accounts {
		fmt.Printf("%s (%s) %s\n", account.Name, account.ID, account.Display)
	}

	sessionID, err := client.CreateSession(ctx)
	if err != nil {
		log.Fatal(err)
	}
	reply, err := client.Send(ctx, sessionID, *message)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Text)
}
