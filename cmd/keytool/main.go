// Command keytool seals the feed API key into a password-protected file for
// feed.encrypted_key_path, or opens one to check the password.
//
//	EVBOARD_FEED_KEY_PASSWORD=... keytool -out feed.key < api_key.txt
//	EVBOARD_FEED_KEY_PASSWORD=... keytool -check feed.key
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/evbets/evboard/internal/crypto"
)

const passwordEnv = "EVBOARD_FEED_KEY_PASSWORD"

func main() {
	out := flag.String("out", "", "write the sealed key to this file")
	check := flag.String("check", "", "open this sealed key file and report whether the password fits")
	flag.Parse()

	_ = godotenv.Load()
	password := os.Getenv(passwordEnv)
	if password == "" {
		fatalf("%s must be set", passwordEnv)
	}

	switch {
	case *check != "":
		data, err := os.ReadFile(*check)
		if err != nil {
			fatalf("read %s: %v", *check, err)
		}
		key, err := crypto.OpenSecret(data, password)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("ok: key of %d characters\n", len(key))
	case *out != "":
		secret, err := readLine(os.Stdin)
		if err != nil {
			fatalf("read key from stdin: %v", err)
		}
		sealed, err := crypto.SealSecret(secret, password)
		if err != nil {
			fatalf("%v", err)
		}
		if err := os.WriteFile(*out, sealed, 0o600); err != nil {
			fatalf("write %s: %v", *out, err)
		}
		fmt.Printf("sealed key written to %s\n", *out)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return sc.Text(), nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
