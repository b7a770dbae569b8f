package main

import (
	"fmt"
	"os"

	"lockmint/crypto"
)

const defaultKeyFile = "wallet.key"

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		generateKey()
	case "address":
		if len(args) < 2 {
			fmt.Println("Error: please provide a key file.")
			printUsage()
			return
		}
		showAddress(args[1])
	default:
		printUsage()
	}
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(defaultKeyFile, key.Bytes(), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save key to %s: %v\n", defaultKeyFile, err)
		os.Exit(1)
	}
	fmt.Printf("Generated new key and saved to %s\n", defaultKeyFile)
	fmt.Printf("Your account address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store this file securely.")
}

func showAddress(path string) {
	key, err := loadPrivateKey(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(key.PubKey().Address().String())
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key file %s not found. run lockmint-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("key file %s is empty. run lockmint-cli generate-key first", path)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return key, nil
}

func printUsage() {
	fmt.Println("Usage: lockmint-cli <command>")
	fmt.Println("  generate-key          create wallet.key and print its address")
	fmt.Println("  address <key-file>    print the address for an existing key")
}
