// Package faqbot embeds the faqbot conversation engine in a Go program.
//
// The engine reads its dialog flows and knowledge base from a content
// directory and answers each message with a scripted dialog step, a
// knowledge-base answer, a retrieval-grounded answer or a fallback.
// Conversation state lives in process memory unless Redis is configured.
//
//	bot, err := faqbot.New(ctx,
//	    faqbot.WithContentDir("./content"),
//	    faqbot.WithRedis("localhost:6379", ""),
//	    faqbot.WithEmbedder(myEmbedder, 1024),
//	)
//	if err != nil {
//	    return err
//	}
//	defer bot.Close()
//
//	reply, err := bot.HandleMessage(ctx, "user-42", "I have a billing question")
//
// Documents ingested with Ingest ground answers to questions the knowledge
// base does not cover:
//
//	_, err = bot.Ingest(ctx, faqbot.Document{
//	    SourceType: "manual",
//	    SourceID:   "returns.md",
//	    Content:    text,
//	})
package faqbot
