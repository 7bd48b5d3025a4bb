// cmd/paperclip-agent/main.go
//
// paperclip-agent is the operator and agent CLI for the Paperclip ledger.
// It manages an encrypted local keypair, signs transactions, and submits
// them to a paperclipd daemon.
//
// Usage:
//
//	paperclip-agent keygen [--key agent.key] [--password pw]
//	paperclip-agent id
//	paperclip-agent init --base-reward 1000
//	paperclip-agent register
//	paperclip-agent register-invited --inviter <hex-identity>
//	paperclip-agent invite
//	paperclip-agent create-task --id 1 --title "..." --cid <hex> --reward 100 --max-claims 10 [--min-tier 0] [--requires 0]
//	paperclip-agent deactivate-task --id 1
//	paperclip-agent submit --id 1 --proof <hex>
//	paperclip-agent pause --paused=true
//	paperclip-agent status
package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/cliplabs/paperclip/internal/keystore"
	"github.com/cliplabs/paperclip/internal/ledger"
	"github.com/cliplabs/paperclip/internal/runtime"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		cmdKeygen(os.Args[2:])
	case "id":
		cmdID(os.Args[2:])
	case "init":
		cmdInit(os.Args[2:])
	case "register":
		cmdRegister(os.Args[2:])
	case "register-invited":
		cmdRegisterInvited(os.Args[2:])
	case "invite":
		cmdInvite(os.Args[2:])
	case "create-task":
		cmdCreateTask(os.Args[2:])
	case "deactivate-task":
		cmdDeactivateTask(os.Args[2:])
	case "submit":
		cmdSubmit(os.Args[2:])
	case "pause":
		cmdPause(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `paperclip-agent <command> [flags]

Commands:
  keygen           generate a new encrypted keypair
  id               print this agent's identity (also its invite code)
  init             initialize the protocol (caller becomes authority)
  register         register as an agent
  register-invited register using an inviter's code
  invite           open this agent's referral slot
  create-task      publish a task (authority only)
  deactivate-task  retire a task (authority only)
  submit           submit completion proof for a task
  pause            set the protocol pause flag (authority only)
  status           show global protocol counters`)
}

// commonFlags registers the flags every signing command shares.
func commonFlags(fs *flag.FlagSet) (key, password, server *string) {
	key = fs.String("key", "agent.key", "path to keyfile")
	password = fs.String("password", "", "keyfile password")
	server = fs.String("server", "http://127.0.0.1:8420", "paperclipd base URL")
	return
}

func loadKey(path, password string) (ledger.Identity, ed25519.PrivateKey) {
	pub, priv, err := keystore.Load(path, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	return keystore.IdentityOf(pub), priv
}

func cmdKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	key, password, _ := commonFlags(fs)
	fs.Parse(args)

	if _, err := os.Stat(*key); err == nil {
		log.Fatalf("keyfile %s already exists", *key)
	}
	pub, _, err := keystore.Generate(*key, *password)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	fmt.Printf("identity: %s\n", keystore.IdentityOf(pub))
	fmt.Printf("keyfile:  %s\n", *key)
}

func cmdID(args []string) {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	key, password, _ := commonFlags(fs)
	fs.Parse(args)

	id, _ := loadKey(*key, *password)
	fmt.Println(id)
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	baseReward := fs.Uint64("base-reward", 1000, "base reward unit in clips")
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpInitialize, runtime.InitializeParams{
		BaseRewardUnit: *baseReward,
	})
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpRegisterAgent, runtime.RegisterAgentParams{})
}

func cmdRegisterInvited(args []string) {
	fs := flag.NewFlagSet("register-invited", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	inviter := fs.String("inviter", "", "inviter identity (hex); the invite code is this same value")
	code := fs.String("code", "", "invite code (hex), defaults to --inviter")
	fs.Parse(args)

	inviterID, err := ledger.IdentityFromHex(*inviter)
	if err != nil {
		log.Fatalf("invalid --inviter: %v", err)
	}
	codeID := inviterID
	if *code != "" {
		if codeID, err = ledger.IdentityFromHex(*code); err != nil {
			log.Fatalf("invalid --code: %v", err)
		}
	}

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpRegisterAgentWithInvite, runtime.RegisterAgentWithInviteParams{
		Inviter:    inviterID,
		InviteCode: codeID,
	})
}

func cmdInvite(args []string) {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpCreateInvite, runtime.CreateInviteParams{})
	fmt.Printf("invite code: %s\n", id)
}

func cmdCreateTask(args []string) {
	fs := flag.NewFlagSet("create-task", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	taskID := fs.Uint("id", 0, "task id")
	title := fs.String("title", "", "task title (max 32 bytes)")
	cid := fs.String("cid", "", "content CID (hex, up to 64 bytes)")
	reward := fs.Uint64("reward", 0, "reward in clips")
	maxClaims := fs.Uint("max-claims", 1, "maximum number of claims")
	minTier := fs.Uint("min-tier", 0, "minimum efficiency tier")
	requires := fs.Uint("requires", uint(ledger.NoPrereqTaskID), "prerequisite task id")
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpCreateTask, runtime.CreateTaskParams{
		TaskID:         uint32(*taskID),
		Title:          ledger.TitleFromString(*title),
		ContentCID:     parseCID(*cid),
		RewardClips:    *reward,
		MaxClaims:      uint16(*maxClaims),
		MinTier:        uint8(*minTier),
		RequiredTaskID: uint32(*requires),
	})
}

func cmdDeactivateTask(args []string) {
	fs := flag.NewFlagSet("deactivate-task", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	taskID := fs.Uint("id", 0, "task id")
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpDeactivateTask, runtime.DeactivateTaskParams{
		TaskID: uint32(*taskID),
	})
}

func cmdSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	taskID := fs.Uint("id", 0, "task id")
	proof := fs.String("proof", "", "proof CID (hex, up to 64 bytes)")
	fs.Parse(args)

	id, priv := loadKey(*key, *password)

	// If the task declares a prerequisite, compute the reference to this
	// agent's claim on it so the handler can verify the chain.
	params := runtime.SubmitProofParams{
		TaskID:   uint32(*taskID),
		ProofCID: parseCID(*proof),
	}
	if task, err := fetchTask(*server, uint32(*taskID)); err == nil && task.RequiredTaskID != ledger.NoPrereqTaskID {
		addr, _, err := ledger.ClaimAddress(task.RequiredTaskID, id)
		if err != nil {
			log.Fatalf("derive prerequisite claim: %v", err)
		}
		params.PrereqClaim = &addr
	}

	sendTx(*server, id, priv, runtime.OpSubmitProof, params)
}

func cmdPause(args []string) {
	fs := flag.NewFlagSet("pause", flag.ExitOnError)
	key, password, server := commonFlags(fs)
	paused := fs.Bool("paused", true, "pause flag value")
	fs.Parse(args)

	id, priv := loadKey(*key, *password)
	sendTx(*server, id, priv, runtime.OpSetPaused, runtime.SetPausedParams{Paused: *paused})
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server := fs.String("server", "http://127.0.0.1:8420", "paperclipd base URL")
	fs.Parse(args)

	resp, err := http.Get(*server + "/api/protocol")
	if err != nil {
		log.Fatalf("fetch protocol: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("fetch protocol: %s", bytes.TrimSpace(body))
	}
	fmt.Println(string(bytes.TrimSpace(body)))
}

// taskInfo is the subset of the task view the CLI needs.
type taskInfo struct {
	RequiredTaskID uint32 `json:"required_task_id"`
}

func fetchTask(server string, taskID uint32) (*taskInfo, error) {
	resp, err := http.Get(fmt.Sprintf("%s/api/tasks/%d", server, taskID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("task fetch: status %d", resp.StatusCode)
	}
	var t taskInfo
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// parseCID decodes a hex CID, zero-padding short values to 64 bytes.
func parseCID(s string) ledger.CID {
	var c ledger.CID
	b, err := hex.DecodeString(s)
	if err != nil {
		log.Fatalf("invalid cid hex: %v", err)
	}
	if len(b) > len(c) {
		log.Fatalf("cid too long: %d bytes, max %d", len(b), len(c))
	}
	copy(c[:], b)
	return c
}

// sendTx signs a transaction and POSTs it to the daemon, printing the
// receipt or the rejection.
func sendTx(server string, signer ledger.Identity, priv ed25519.PrivateKey, op runtime.Op, params any) {
	tx, err := runtime.NewTx(op, params, signer)
	if err != nil {
		log.Fatalf("build tx: %v", err)
	}
	tx.Sign(priv)

	payload, err := json.Marshal(tx)
	if err != nil {
		log.Fatalf("marshal tx: %v", err)
	}
	resp, err := http.Post(server+"/api/tx", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("submit tx: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("tx rejected (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	fmt.Println(string(bytes.TrimSpace(body)))
}
