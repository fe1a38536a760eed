package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/storesync/providers"
	"github.com/marcelsud/storesync/webhook/signature"
)

/* validate-providers - Standalone CLI tool to validate providers.yaml
 * Usage: go run cmd/validate-providers/main.go [providers.yaml]
 *        go run cmd/validate-providers/main.go new-secret
 * Secrets are resolved from the current environment
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	if len(os.Args) > 1 && os.Args[1] == "new-secret" {
		newSecret()
		return
	}

	providersFile := "providers.yaml"
	if len(os.Args) > 1 {
		providersFile = os.Args[1]
	}

	fmt.Printf("Validating providers file: %s\n", providersFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := providers.NewLoader()
	if err := loader.Load(providersFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d provider(s):\n", len(loaded))

	for i, p := range loaded {
		fmt.Printf("\n%d. Provider: %s\n", i+1, p.Name)
		fmt.Printf("   Scheme:            %s\n", p.Scheme)
		if p.TopicHeader != "" {
			fmt.Printf("   Topic header:      %s\n", p.TopicHeader)
		} else {
			fmt.Printf("   Topic field:       %s\n", p.TopicField)
		}
		fmt.Printf("   Signature header:  %s\n", p.SignatureHeader)
		if p.DeliveryIDHeader != "" {
			fmt.Printf("   Delivery header:   %s\n", p.DeliveryIDHeader)
		}
		if p.Tolerance > 0 {
			fmt.Printf("   Tolerance:         %s\n", p.Tolerance)
		}
		fmt.Printf("   Require signature: %t\n", p.RequireSignature)
		fmt.Printf("   Secret set:        %t\n", p.Secret != "")
	}

	fmt.Printf("\n✓ All providers are valid!\n")
	os.Exit(0)
}

// newSecret prints a fresh whsec_ secret for a payments endpoint
func newSecret() {
	secret, err := signature.GenerateSecret(32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(secret.String())
}
