// Команда botkey печатает bcrypt-хэш ключа бота для telegram.bot_api_key_hash.
//
//	go run ./cmd/botkey -key "$BOT_API_KEY"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/password"
)

func main() {
	key := flag.String("key", os.Getenv("BOT_API_KEY"), "ключ, который бот шлёт в X-Bot-Api-Key")
	flag.Parse()

	hash, err := password.Hash(*key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
