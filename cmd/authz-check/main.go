package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/identra/authz"
	"github.com/identra/authz/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		handleCheck()
	case "validate":
		handleValidate()
	case "convert":
		handleConvert()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("authz-check - Access decision tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  authz-check check -config <file> -user <id> -tenant <id> [flags]")
	fmt.Println("  authz-check validate <file>")
	fmt.Println("  authz-check convert <input> <output>")
	fmt.Println()
	fmt.Println("Check flags:")
	fmt.Println("  -permission <code>     permission code to check")
	fmt.Println("  -resource-type <type>  resource type for ACL lookup")
	fmt.Println("  -resource-id <id>      specific resource instance")
	fmt.Println("  -action <name>         action for ACL lookup")
	fmt.Println("  -roles <id,id>         role ids (resolved from assignments when omitted)")
	fmt.Println("  -attr name=value       attribute override (repeatable)")
	fmt.Println("  -explain               print the evaluation trace")
	fmt.Println("  -verbose               log each decision")
	fmt.Println()
	fmt.Println("Supported config formats: .yaml, .yml, .json")
}

// attrFlags collects repeated -attr name=value pairs.
type attrFlags map[string]authz.Value

func (a attrFlags) String() string { return fmt.Sprintf("%v", map[string]authz.Value(a)) }

func (a attrFlags) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want name=value, got %q", s)
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		parsed = raw // bare word, treat as string
	}
	v, err := authz.ValueFrom(parsed)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	a[name] = v
	return nil
}

func handleCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "fixture file (.yaml/.yml/.json)")
	user := fs.String("user", "", "user id")
	tenant := fs.String("tenant", "", "tenant id")
	permission := fs.String("permission", "", "permission code")
	resourceType := fs.String("resource-type", "", "resource type")
	resourceID := fs.String("resource-id", "", "resource id")
	action := fs.String("action", "", "action name")
	roles := fs.String("roles", "", "comma-separated role ids")
	explain := fs.Bool("explain", false, "print the evaluation trace")
	verbose := fs.Bool("verbose", false, "log each decision")
	attrs := attrFlags{}
	fs.Var(attrs, "attr", "attribute override name=value (repeatable)")
	fs.Parse(os.Args[2:])

	if *configPath == "" || *user == "" || *tenant == "" {
		fmt.Println("check requires -config, -user and -tenant")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := authz.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	backend := authz.NewMemoryBackend()
	if err := cfg.Apply(ctx, backend); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}
	var opts []authz.Option
	if *verbose {
		opts = append(opts, authz.WithLogger(logger.NewPhusluLogger()))
	}
	engine := backend.Engine(opts...)
	defer engine.Close()

	req := authz.AccessRequest{
		UserID:         *user,
		TenantID:       *tenant,
		PermissionCode: *permission,
		ResourceType:   *resourceType,
		ResourceID:     *resourceID,
		Action:         *action,
		Attributes:     attrs,
	}
	if *roles != "" {
		req.RoleIDs = strings.Split(*roles, ",")
	} else {
		ids, err := engine.RoleEvaluator().ResolveRoleIDs(ctx, *user, *tenant)
		if err != nil {
			fmt.Printf("Error resolving roles: %v\n", err)
			os.Exit(1)
		}
		req.RoleIDs = ids
	}

	if *explain {
		decision, err := engine.Explain(ctx, req)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		printDecision(decision)
		if !decision.Allowed {
			os.Exit(2)
		}
		return
	}

	allowed, err := engine.CanAccess(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if allowed {
		fmt.Println("ALLOW")
		return
	}
	fmt.Println("DENY")
	os.Exit(2)
}

func printDecision(d *authz.Decision) {
	verdict := "DENY"
	if d.Allowed {
		verdict = "ALLOW"
	}
	fmt.Printf("%s (%s)\n", verdict, d.Reason)
	if d.MatchedBy != "" {
		fmt.Printf("  matched by: %s\n", d.MatchedBy)
	}
	for _, line := range d.Trace {
		fmt.Printf("  %s\n", line)
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-check validate <file>")
		os.Exit(1)
	}

	cfg, err := authz.LoadConfigFile(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Tenants:     %d\n", len(cfg.Tenants))
	fmt.Printf("  Permissions: %d\n", len(cfg.Permissions))
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Printf("  Attributes:  %d\n", len(cfg.Attributes))
	fmt.Printf("  Policies:    %d\n", len(cfg.Policies))
	fmt.Printf("  ACLs:        %d\n", len(cfg.ACLs))
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: authz-check convert <input> <output>")
		os.Exit(1)
	}

	cfg, err := authz.LoadConfigFile(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	out := os.Args[3]
	var data []byte
	switch {
	case strings.HasSuffix(out, ".yaml"), strings.HasSuffix(out, ".yml"):
		data, err = cfg.ToYAML()
	case strings.HasSuffix(out, ".json"):
		data, err = cfg.ToJSON()
	default:
		fmt.Printf("Unsupported output format: %s\n", out)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error encoding config: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Printf("Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], out)
}
