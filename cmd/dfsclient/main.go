// Command dfsclient is an interactive REPL client for the distributed
// document-editing filesystem: it logs in to a naming server and issues
// one wire-protocol operation per typed command, following the CLI
// surface's optional `<ns_ip> <ns_port>` positional arguments.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/marmos91/dfs/pkg/client"
)

const (
	defaultNSIP   = "127.0.0.1"
	defaultNSPort = "8080"
)

func main() {
	nsIP, nsPort := defaultNSIP, defaultNSPort
	if len(os.Args) >= 3 {
		nsIP, nsPort = os.Args[1], os.Args[2]
	} else if len(os.Args) == 2 {
		fmt.Fprintln(os.Stderr, "usage: dfsclient [ns_ip ns_port]")
		os.Exit(1)
	}

	addr := net.JoinHostPort(nsIP, nsPort)
	c, err := client.Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to naming server %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer c.Close()

	stdin := bufio.NewScanner(os.Stdin)
	fmt.Print("username: ")
	if !stdin.Scan() {
		return
	}
	username := strings.TrimSpace(stdin.Text())
	if err := c.Login(username); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("connected to %s as %s. Type HELP for commands.\n", addr, username)
	repl(c, stdin)
}

// useSS is the REPL's sticky USE target: the storage server id passed on
// every subsequent CREATE until USE is run again (empty means the naming
// server's default).
var useSS string

func repl(c *client.Client, stdin *bufio.Scanner) {
	for {
		fmt.Print("dfs> ")
		if !stdin.Scan() {
			return
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		args := fields[1:]

		switch cmd {
		case "HELP", "?":
			printHelp()
		case "QUIT", "EXIT":
			return
		default:
			if err := dispatch(c, stdin, cmd, args); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  CREATE <file> [folder]            create a new file
  USE [ss_id]                       pin CREATE to a storage server (no arg clears)
  FILES [-a] [-l]                   list visible files (-a: all, -l: with counts)
  DELETE <file>                     delete a file you own
  READ <file>                       print a file's full content
  WRITE <file> <sentence_num>       open a sentence edit session
  UNDO <file>                       revert the last committed edit
  STREAM <file>                     print a file word by word, paced
  INFO <file>                       print size/word/char counts and ACL
  MKDIR <folder>                    create a folder
  LS [folder]                       list files in a folder (root if omitted)
  MV <file> <folder>                move a file into a folder
  CHECKPOINT <file> <tag>           snapshot a file's content
  CHECKPOINTS <file>                list a file's checkpoint tags
  VIEW <file> <tag>                 print a checkpoint's content
  REVERT <file> <tag>               restore a checkpoint as current content
  SEARCH <pattern>                  list visible files matching pattern
  SS                                list known storage servers
  USERS <file>                      list users with access to a file
  GRANT <file> <user> <r|w|rw>      grant access (owner only)
  REVOKE <file> <user>              revoke access (owner only)
  REQUEST <file> <r|w|rw>           request access to a file
  REQUESTS <file>                   list pending access requests (owner only)
  APPROVE <file> <request_id>       approve a pending request (owner only)
  DENY <file> <request_id>          deny a pending request (owner only)
  EXEC <file>                       run a file as a script on the server
  HELP                              show this screen
  QUIT                              disconnect and exit`)
}

func dispatch(c *client.Client, stdin *bufio.Scanner, cmd string, args []string) error {
	switch cmd {
	case "CREATE":
		return cmdCreate(c, args)
	case "USE":
		return cmdUse(args)
	case "FILES":
		return cmdFiles(c, args)
	case "DELETE":
		return requireArgs(args, 1, func() error { return c.Delete(args[0]) })
	case "READ":
		return cmdRead(c, args)
	case "WRITE":
		return cmdWrite(c, stdin, args)
	case "UNDO":
		return requireArgs(args, 1, func() error { return c.Undo(args[0]) })
	case "STREAM":
		return cmdStream(c, args)
	case "INFO":
		return cmdInfo(c, args)
	case "MKDIR":
		return requireArgs(args, 1, func() error { return c.CreateFolder(args[0]) })
	case "LS":
		return cmdLS(c, args)
	case "MV":
		return requireArgs(args, 2, func() error { return c.Move(args[0], args[1]) })
	case "CHECKPOINT":
		return requireArgs(args, 2, func() error { return c.Checkpoint(args[0], args[1]) })
	case "CHECKPOINTS":
		return cmdCheckpoints(c, args)
	case "VIEW":
		return cmdView(c, args)
	case "REVERT":
		return requireArgs(args, 2, func() error { return c.Revert(args[0], args[1]) })
	case "SEARCH":
		return cmdSearch(c, args)
	case "SS":
		return cmdListSS(c)
	case "USERS":
		return cmdUsers(c, args)
	case "GRANT":
		return cmdGrant(c, args)
	case "REVOKE":
		return requireArgs(args, 2, func() error { return c.RemAccess(args[0], args[1]) })
	case "REQUEST":
		return cmdRequestAccess(c, args)
	case "REQUESTS":
		return cmdViewRequests(c, args)
	case "APPROVE":
		return cmdRespondRequest(c, args, true)
	case "DENY":
		return cmdRespondRequest(c, args, false)
	case "EXEC":
		return cmdExec(c, args)
	default:
		return fmt.Errorf("unknown command %q (type HELP)", cmd)
	}
}

func requireArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("expected at least %d argument(s), got %d", n, len(args))
	}
	return fn()
}

func cmdCreate(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: CREATE <file> [folder]")
	}
	folder := ""
	if len(args) >= 2 {
		folder = args[1]
	}
	return c.CreateOn(args[0], folder, useSS)
}

func cmdUse(args []string) error {
	if len(args) == 0 {
		useSS = ""
		fmt.Println("CREATE target reset to the naming server's default")
		return nil
	}
	useSS = args[0]
	fmt.Printf("CREATE now targets storage server %s\n", useSS)
	return nil
}

func cmdFiles(c *client.Client, args []string) error {
	var all, long bool
	for _, a := range args {
		switch a {
		case "-a":
			all = true
		case "-l":
			long = true
		case "-al", "-la":
			all, long = true, true
		default:
			return fmt.Errorf("usage: FILES [-a] [-l]")
		}
	}
	entries, err := c.View(all, long)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if long {
			fmt.Printf("%s\tsize=%d words=%d chars=%d\n", e.Name, e.Size, e.Words, e.Chars)
		} else {
			fmt.Println(e.Name)
		}
	}
	return nil
}

func cmdRead(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: READ <file>")
	}
	data, err := c.Read(args[0])
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func cmdWrite(c *client.Client, stdin *bufio.Scanner, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: WRITE <file> <sentence_num>")
	}
	sentenceNum, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid sentence_num %q: %w", args[1], err)
	}

	sess, text, err := c.BeginWrite(args[0], int32(sentenceNum))
	if err != nil {
		return err
	}
	fmt.Printf("sentence %d: %q\n", sentenceNum, text)
	fmt.Println("INSERT <word_index> <text>, COMMIT, or CANCEL:")

	for {
		fmt.Print("  edit> ")
		if !stdin.Scan() {
			sess.Close()
			return nil
		}
		line := strings.TrimSpace(stdin.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "COMMIT":
			content, err := sess.Commit()
			if err != nil {
				return err
			}
			fmt.Printf("committed. file content:\n%s\n", content)
			return nil
		case "CANCEL":
			return sess.Close()
		case "INSERT":
			if len(fields) < 3 {
				fmt.Println("usage: INSERT <word_index> <text...>")
				continue
			}
			wordIndex, err := strconv.ParseInt(fields[1], 10, 32)
			if err != nil {
				fmt.Printf("invalid word_index %q: %v\n", fields[1], err)
				continue
			}
			payload := strings.Join(fields[2:], " ")
			newText, newIndex, err := sess.InsertWords(int32(wordIndex), payload)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("sentence now: %q (next word index %d)\n", newText, newIndex)
		default:
			fmt.Println("expected INSERT, COMMIT, or CANCEL")
		}
	}
}

func cmdStream(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: STREAM <file>")
	}
	return c.Stream(args[0], func(word string) {
		fmt.Printf("%s ", word)
	}, func() {
		fmt.Println()
	})
}

func cmdInfo(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: INFO <file>")
	}
	info, err := c.Info(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("size=%d words=%d chars=%d\n", info.Size, info.Words, info.Chars)
	for _, e := range info.ACL {
		fmt.Printf("  %s: %s\n", e.Username, accessString(e.Access))
	}
	return nil
}

func cmdLS(c *client.Client, args []string) error {
	folder := ""
	if len(args) >= 1 {
		folder = args[0]
	}
	names, err := c.ViewFolder(folder)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func cmdCheckpoints(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: CHECKPOINTS <file>")
	}
	tags, err := c.ListCheckpoints(args[0])
	if err != nil {
		return err
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return nil
}

func cmdView(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: VIEW <file> <tag>")
	}
	data, err := c.ViewCheckpoint(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func cmdSearch(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: SEARCH <pattern>")
	}
	names, err := c.Search(args[0])
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func cmdListSS(c *client.Client) error {
	servers, err := c.ListSS()
	if err != nil {
		return err
	}
	for _, s := range servers {
		fmt.Printf("%s\t%s\t%s\n", s.ID, s.Addr, s.Status)
	}
	return nil
}

func cmdUsers(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: USERS <file>")
	}
	users, err := c.ListUsers(args[0])
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s: %s\n", u.Username, accessString(u.Access))
	}
	return nil
}

func cmdGrant(c *client.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: GRANT <file> <user> <r|w|rw>")
	}
	bits, err := parseAccess(args[2])
	if err != nil {
		return err
	}
	return c.AddAccess(args[0], args[1], bits)
}

func cmdRequestAccess(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: REQUEST <file> <r|w|rw>")
	}
	bits, err := parseAccess(args[1])
	if err != nil {
		return err
	}
	id, err := c.RequestAccess(args[0], bits)
	if err != nil {
		return err
	}
	fmt.Printf("request id %d\n", id)
	return nil
}

func cmdViewRequests(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: REQUESTS <file>")
	}
	pending, err := c.ViewRequests(args[0])
	if err != nil {
		return err
	}
	for _, r := range pending {
		fmt.Printf("#%d %s wants %s\n", r.ID, r.Requester, accessString(r.Access))
	}
	return nil
}

func cmdRespondRequest(c *client.Client, args []string, approve bool) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: APPROVE|DENY <file> <request_id>")
	}
	id, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid request_id %q: %w", args[1], err)
	}
	return c.RespondRequest(args[0], uint32(id), approve)
}

func cmdExec(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: EXEC <file>")
	}
	out, err := c.Exec(args[0])
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func parseAccess(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "r":
		return client.AccessRead, nil
	case "w":
		return client.AccessWrite, nil
	case "rw", "wr":
		return client.AccessRead | client.AccessWrite, nil
	default:
		return 0, fmt.Errorf("invalid access %q, expected r, w, or rw", s)
	}
}

func accessString(bits uint8) string {
	var parts []string
	if bits&client.AccessRead != 0 {
		parts = append(parts, "read")
	}
	if bits&client.AccessWrite != 0 {
		parts = append(parts, "write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
