//go:build linux

// Command client runs a single operation against a ZooKeeper ensemble and prints
// the result as JSON.
//
//	client -connect localhost:2181 create /zoo "some data"
//	client -connect localhost:2181 watch /zoo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"

	"github.com/xstory/node-zookeeper/pkg/client"
	"github.com/xstory/node-zookeeper/pkg/persistence"
	"github.com/xstory/node-zookeeper/pkg/reactor"
	"github.com/xstory/node-zookeeper/pkg/server"
	"github.com/xstory/node-zookeeper/pkg/session"
	"github.com/xstory/node-zookeeper/pkg/zookeeper"
)

const usage = `usage: client [flags] <command> <path> [args]

commands:
  create <path> [data]   create a node, -ephemeral and -sequence set its flags
  get <path>             print the data and stat of a node
  set <path> <data>      replace the data of a node
  delete <path>          delete a node
  ls <path>              list the children of a node
  ls2 <path>             list the children of a node with its stat
  stat <path>            print the stat of a node
  getacl <path>          print the ACL of a node
  setacl <path> <acl>    replace the ACL, given as scheme:id:perms[,...]
  watch <path>           print the data of a node and wait for it to change

A failed operation exits with 64 plus the gRPC code of its result, e.g. 69 when
the node does not exist. Any other failure exits with 1.
`

type options struct {
	configPath    string
	connect       string
	timeout       int
	debugLevel    string
	deterministic bool
	identityDir   string
	identityName  string
	inMemory      bool
	version       int
	ephemeral     bool
	sequence      bool
	auth          string
}

func main() {
	klog.InitFlags(nil)
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML session config file")
	flag.StringVar(&o.connect, "connect", "", "comma separated host:port pairs, overrides the config file")
	flag.IntVar(&o.timeout, "timeout", 0, "session timeout in milliseconds, overrides the config file")
	flag.StringVar(&o.debugLevel, "debug-level", "", "protocol library verbosity: error, warn, info or debug")
	flag.BoolVar(&o.deterministic, "deterministic", false, "connect to the hosts in the given order")
	flag.StringVar(&o.identityDir, "identity-dir", "", "directory where the session identity is kept between runs")
	flag.StringVar(&o.identityName, "identity-name", "client", "name of the saved session identity")
	flag.BoolVar(&o.inMemory, "in-memory", false, "run against an in-process server instead of connecting")
	flag.IntVar(&o.version, "version", -1, "expected node version for set, delete and setacl")
	flag.BoolVar(&o.ephemeral, "ephemeral", false, "create an ephemeral node")
	flag.BoolVar(&o.sequence, "sequence", false, "append a sequence number to the created node")
	flag.StringVar(&o.auth, "auth", "", "authenticate as scheme:credentials before running the command")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(o, flag.Args()))
}

func run(o options, args []string) int {
	defer klog.Flush()
	log := klog.Background()

	cmd, err := parseCommand(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		return 2
	}
	cfg, err := o.config()
	if err != nil {
		log.Error(err, "Invalid configuration")
		return 2
	}

	var store *persistence.IdentityStore
	if o.identityDir != "" {
		store, err = persistence.NewIdentityStore(o.identityDir)
		if err != nil {
			log.Error(err, "Failed to open identity store", "dir", o.identityDir)
			return 1
		}
		cfg = resume(log, store, o.identityName, cfg)
	}

	var lib zookeeper.Library = client.New(client.WithLogger(log.WithName("zk")))
	if o.inMemory {
		lib = server.NewServer(server.WithLogger(log.WithName("server")))
	}

	loop, err := reactor.New(reactor.WithLogger(log.WithName("reactor")))
	if err != nil {
		log.Error(err, "Failed to create the event loop")
		return 1
	}
	defer loop.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{log: log, loop: loop, store: store, opts: o, cmd: cmd, cfg: cfg}
	loop.Post(func() { c.start(lib) })
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err, "Event loop failed")
		return 1
	}
	if ctx.Err() != nil && c.session != nil {
		// Interrupted: close the session so pending completions run.
		c.session.Close()
	}
	return c.exitCode
}

func (o options) config() (session.Config, error) {
	var cfg session.Config
	if o.configPath != "" {
		var err error
		if cfg, err = session.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.connect != "" {
		cfg.Connect = o.connect
	}
	if o.inMemory && cfg.Connect == "" {
		cfg.Connect = "localhost"
	}
	if o.timeout != 0 {
		cfg.Timeout = int32(o.timeout)
	}
	if o.debugLevel != "" {
		cfg.DebugLevel = o.debugLevel
	}
	if o.deterministic {
		cfg.HostOrderDeterministic = true
	}
	return cfg, cfg.Validate()
}

// resume fills in the saved identity unless the config names one already.
func resume(log logr.Logger, store *persistence.IdentityStore, name string, cfg session.Config) session.Config {
	if cfg.ClientID != nil {
		return cfg
	}
	identity, err := store.Load(name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg
	case err != nil:
		log.Error(err, "Ignoring unreadable session identity", "name", name)
		return cfg
	case identity.Hosts != cfg.Connect:
		log.Info("Ignoring session identity saved for other hosts", "hosts", identity.Hosts)
		return cfg
	}
	id := zookeeper.FormatSessionID(identity.ClientID.ID)
	passwd := zookeeper.FormatPassword(identity.ClientID.Passwd)
	cfg.ClientID, cfg.ClientPassword = &id, &passwd
	log.V(1).Info("Resuming session", "sessionID", id)
	return cfg
}

type command struct {
	name string
	path string
	arg  string
}

var commandArgs = map[string]int{
	"create": -1,
	"get":    0,
	"set":    1,
	"delete": 0,
	"ls":     0,
	"ls2":    0,
	"stat":   0,
	"getacl": 0,
	"setacl": 1,
	"watch":  0,
}

func parseCommand(args []string) (command, error) {
	if len(args) < 2 {
		return command{}, errors.New("a command and a path are required")
	}
	extra, ok := commandArgs[args[0]]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q", args[0])
	}
	cmd := command{name: args[0], path: args[1]}
	switch rest := args[2:]; {
	case extra == -1 && len(rest) <= 1:
		cmd.arg = strings.Join(rest, "")
	case len(rest) == extra:
		cmd.arg = strings.Join(rest, "")
	default:
		return command{}, fmt.Errorf("wrong number of arguments for %s", cmd.name)
	}
	return cmd, nil
}

type cli struct {
	log      logr.Logger
	loop     *reactor.Loop
	store    *persistence.IdentityStore
	opts     options
	cmd      command
	cfg      session.Config
	session  *session.Session
	started  bool
	exitCode int
}

func (c *cli) start(lib zookeeper.Library) {
	c.session = session.New(lib, c.loop,
		session.WithLogger(c.log.WithName("session")),
		session.WithListener(c.notified),
	)
	if err := c.session.Init(c.cfg); err != nil {
		c.log.Error(err, "Failed to start the session")
		c.exitCode = 1
		c.loop.Stop()
	}
}

func (c *cli) notified(s *session.Session, n session.Notification) {
	switch n.Type {
	case session.NotifyConnect:
		c.log.V(1).Info("Connected", "sessionID", s.SessionID(), "timeout", s.Timeout())
		c.saveIdentity(s)
		if !c.started {
			c.started = true
			c.execute(s)
		}
	case session.NotifyClose:
		if n.Code != 0 {
			c.log.Error(nil, "Session closed", "state", zookeeper.State(n.Code))
			if c.exitCode == 0 {
				c.exitCode = 1
			}
			if n.Code == int32(zookeeper.StateExpired) && c.store != nil {
				if err := c.store.Remove(c.opts.identityName); err != nil {
					c.log.Error(err, "Failed to remove session identity")
				}
			}
		}
		s.Release()
		c.loop.Stop()
	default:
		c.log.V(1).Info("Session notification", "type", n.Type, "path", n.Path)
	}
}

func (c *cli) saveIdentity(s *session.Session) {
	id := s.ClientID()
	if c.store == nil || id.Passwd == ([zookeeper.PasswordLen]byte{}) {
		return
	}
	err := c.store.Save(c.opts.identityName, persistence.Identity{ClientID: id, Hosts: c.cfg.Connect})
	if err != nil {
		c.log.Error(err, "Failed to save session identity")
	}
}

func (c *cli) execute(s *session.Session) {
	if c.opts.auth != "" {
		scheme, cert, _ := strings.Cut(c.opts.auth, ":")
		rc := s.AddAuth(scheme, []byte(cert), func(res session.Result) {
			if res.Code != zookeeper.Ok {
				c.print(res)
				c.failed(res.Code)
			}
		})
		if rc != zookeeper.Ok {
			c.fail(s, rc)
			return
		}
	}

	done := func(res session.Result) {
		c.print(res)
		if res.Code != zookeeper.Ok {
			c.failed(res.Code)
		}
		s.Close()
	}
	version := int32(c.opts.version)

	var rc zookeeper.ResultCode
	switch c.cmd.name {
	case "create":
		var flags zookeeper.Flag
		if c.opts.ephemeral {
			flags |= zookeeper.FlagEphemeral
		}
		if c.opts.sequence {
			flags |= zookeeper.FlagSequence
		}
		rc = s.Create(c.cmd.path, []byte(c.cmd.arg), flags, done)
	case "get":
		rc = s.Get(c.cmd.path, false, done)
	case "set":
		rc = s.Set(c.cmd.path, []byte(c.cmd.arg), version, done)
	case "delete":
		rc = s.Delete(c.cmd.path, version, done)
	case "ls":
		rc = s.GetChildren(c.cmd.path, false, done)
	case "ls2":
		rc = s.GetChildren2(c.cmd.path, false, done)
	case "stat":
		rc = s.Exists(c.cmd.path, false, done)
	case "getacl":
		rc = s.GetACL(c.cmd.path, done)
	case "setacl":
		acl, err := parseACL(c.cmd.arg)
		if err != nil {
			c.log.Error(err, "Invalid ACL")
			c.fail(s, zookeeper.BadArguments)
			return
		}
		rc = s.SetACL(c.cmd.path, version, acl, done)
	case "watch":
		rc = s.WGet(c.cmd.path, func(ev session.WatchEvent) {
			c.printEvent(ev)
			s.Close()
		}, nil, func(res session.Result) {
			c.print(res)
			if res.Code != zookeeper.Ok {
				c.failed(res.Code)
				s.Close()
			}
		})
	}
	if rc != zookeeper.Ok {
		c.fail(s, rc)
	}
}

func (c *cli) fail(s *session.Session, rc zookeeper.ResultCode) {
	c.print(session.Result{Code: rc, Message: rc.Message()})
	c.failed(rc)
	s.Close()
}

// failed records the exit status for a failed operation.
func (c *cli) failed(rc zookeeper.ResultCode) {
	st := status.Convert(rc)
	c.log.V(1).Info("Operation failed", "code", st.Code().String(), "message", st.Message())
	c.exitCode = exitStatus(rc)
}

func (c *cli) print(res session.Result) {
	st, err := res.AsStruct()
	if err != nil {
		c.log.Error(err, "Failed to convert result")
		return
	}
	c.printStruct(st)
}

func (c *cli) printEvent(ev session.WatchEvent) {
	st, err := structpb.NewStruct(map[string]any{
		"event": ev.Type.String(),
		"state": ev.State.String(),
		"path":  ev.Path,
	})
	if err != nil {
		c.log.Error(err, "Failed to convert event")
		return
	}
	c.printStruct(st)
}

func (c *cli) printStruct(st *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(st)
	if err != nil {
		c.log.Error(err, "Failed to marshal output")
		return
	}
	fmt.Println(string(b))
}
