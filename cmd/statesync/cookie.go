package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/pkg/cookie"
)

func cookieCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookie",
		Short: "Compose and parse cookie lines",
	}
	cmd.AddCommand(cookieFormatCmd(a), cookieGetCmd())
	return cmd
}

func cookieFormatCmd(a *app) *cobra.Command {
	var (
		path     string
		domain   string
		sameSite string
		secure   bool
		httpOnly bool
		maxAge   time.Duration
		expires  time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "format NAME VALUE",
		Short: "Print the Set-Cookie line a cookie hook would write",
		Long: `Print the cookie line written for NAME and VALUE.

Attributes default to the cookie section of statesync.json; flags override
them.

Examples:
  statesync cookie format theme dark
  statesync cookie format prefs '{"compact":true}' --json --max-age=720h
  statesync cookie format sid abc --secure --same-site=Strict`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.CookieOptions()
			flags := cmd.Flags()
			if flags.Changed("path") {
				opts.Path = path
			}
			if flags.Changed("domain") {
				opts.Domain = domain
			}
			if flags.Changed("same-site") {
				opts.SameSite = sameSite
			}
			if flags.Changed("secure") {
				opts.Secure = secure
			}
			if flags.Changed("http-only") {
				opts.HTTPOnly = httpOnly
			}
			if flags.Changed("max-age") {
				opts.MaxAge = maxAge
			}
			if flags.Changed("expires") {
				opts.Expires = expires
			}

			var value any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("value is not valid JSON: %w", err)
				}
			}

			line, err := cookie.Format(args[0], value, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Path attribute")
	cmd.Flags().StringVar(&domain, "domain", "", "Domain attribute")
	cmd.Flags().StringVar(&sameSite, "same-site", "", "SameSite attribute (Strict, Lax, None)")
	cmd.Flags().BoolVar(&secure, "secure", false, "Secure attribute")
	cmd.Flags().BoolVar(&httpOnly, "http-only", false, "HttpOnly attribute")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Max-Age attribute")
	cmd.Flags().DurationVar(&expires, "expires", 0, "Expires attribute, relative to now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse VALUE as JSON before encoding")

	return cmd
}

func cookieGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get HEADER NAME",
		Short: "Read one cookie from a Cookie header",
		Long: `Decode the cookie NAME from a Cookie header the way cookie hooks do:
JSON values are decoded, anything else is returned raw.

Examples:
  statesync cookie get 'theme=dark; prefs={"compact":true}' prefs`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jar := cookie.NewMemoryJar()
			for _, part := range strings.Split(args[0], ";") {
				jar.SetCookie(strings.TrimSpace(part))
			}

			v, ok := cookie.Get(jar, args[1])
			if !ok {
				return fmt.Errorf("cookie %q not found", args[1])
			}
			out := cmd.OutOrStdout()
			if s, isString := v.(string); isString {
				fmt.Fprintln(out, s)
				return nil
			}
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}
