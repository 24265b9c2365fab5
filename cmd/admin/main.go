package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"worklink/backend/internal/config"
	"worklink/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	db, err := gorm.Open(postgres.Open(os.Getenv("DATABASE_URL")), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "archive-engagement":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin archive-engagement <engagement_ref>")
			os.Exit(1)
		}
		ref := os.Args[2]
		count, err := storageSvc.ArchiveEngagement(ref)
		if err != nil {
			log.Fatalf("Error archiving engagement: %v", err)
		}
		fmt.Printf("Engagement %s archived, %d conversation(s) closed.\n", ref, count)
	case "show":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin show <conversation_id>")
			os.Exit(1)
		}
		if err := showConversation(storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error showing conversation: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func showConversation(s storage.Storage, conversationID string) error {
	conv, err := s.GetConversationByID(conversationID)
	if err != nil {
		return err
	}
	fmt.Printf("Conversation %s (engagement %s, archived=%v)\n", conv.ConversationID, conv.EngagementRef, conv.Archived)
	fmt.Printf("Participants: client=%s freelancer=%s\n", conv.ClientID, conv.FreelancerID)

	// page with the sequence cursor so long conversations print in full
	total := 0
	var cursor uint64
	for {
		messages, err := s.History(context.Background(), conversationID, cursor, config.HistoryMaxLimit)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			fmt.Printf("#%d [%s] %s: %s\n", msg.Seq, msg.Status, msg.SenderID, msg.Content)
		}
		total += len(messages)
		if len(messages) < config.HistoryMaxLimit {
			break
		}
		cursor = messages[len(messages)-1].Seq
	}
	fmt.Printf("%d message(s)\n", total)
	return nil
}
