// The nocgolden command drives the golden routing model: it seeds
// per-core memories, runs fabrics described by JSON configurations, and
// inspects recorded traces.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	Execute()
}
