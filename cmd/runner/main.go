package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os/exec"
	"strings"
)

// The runner bridges a player program to the arbiter: it authenticates,
// enters matchmaking, launches the program when a match starts, forwards
// every stdout line as an in-game command and feeds inbound game payloads
// to the program's stdin. It terminates the program on FIN.
func main() {
	var (
		serverAddr = flag.String("server", "127.0.0.1", "Server location")
		port       = flag.String("port", "31337", "Server port")
		program    = flag.String("program", "", "Player program to run")
		user       = flag.String("user", "", "Username to authenticate with")
		pass       = flag.String("pass", "", "Password")
		register   = flag.Bool("register", false, "Register the user instead of playing")
		gameKind   = flag.String("game", "KLH", "Which game to play")
	)
	flag.Parse()

	conn, err := net.Dial("tcp", net.JoinHostPort(*serverAddr, *port))
	if err != nil {
		log.Fatalf("Could not connect to server: %v", err)
	}
	defer conn.Close()

	if *register {
		sendCmd(conn, fmt.Sprintf("REG %s %s", *user, *pass))
		return
	}
	if *program == "" {
		log.Fatalf("Either -register or -program is required")
	}

	runProgram(conn, *program, *user, *pass, *gameKind)
}

func sendCmd(conn net.Conn, cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	log.Printf("SEND %q", cmd)
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return false
	}
	return true
}

func runProgram(conn net.Conn, program, user, pass, gameKind string) {
	sendCmd(conn, fmt.Sprintf("ATH %s %s", user, pass))
	sendCmd(conn, fmt.Sprintf("LFG %s", gameKind))

	serverLines := make(chan string)
	go scanInto(bufio.NewScanner(conn), serverLines)

	var proc *exec.Cmd
	var stdin *bufio.Writer
	progLines := make(chan string)

	defer func() {
		if proc != nil && proc.Process != nil {
			proc.Process.Kill()
		}
	}()

	for {
		select {
		case line, ok := <-serverLines:
			if !ok {
				log.Printf("Server closed connection")
				return
			}
			log.Printf("RECV %q", line)
			tok := strings.SplitN(line, " ", 3)
			switch tok[0] {
			case "SRT":
				parts := strings.Fields(program)
				proc = exec.Command(parts[0], parts[1:]...)
				stdinPipe, err := proc.StdinPipe()
				if err != nil {
					log.Fatalf("Could not open stdin pipe: %v", err)
				}
				stdoutPipe, err := proc.StdoutPipe()
				if err != nil {
					log.Fatalf("Could not open stdout pipe: %v", err)
				}
				if err := proc.Start(); err != nil {
					log.Fatalf("Could not start program: %v", err)
				}
				stdin = bufio.NewWriter(stdinPipe)
				go scanInto(bufio.NewScanner(stdoutPipe), progLines)

			case "FIN":
				return

			case "DAT":
				// Forward the full trailing payload verbatim
				if len(tok) == 3 && stdin != nil {
					stdin.WriteString(tok[2] + "\n")
					stdin.Flush()
				}
			}
			// Anything else (board renders, ERR) is informational only

		case line, ok := <-progLines:
			if !ok {
				progLines = nil // program exited; keep serving the server side
				continue
			}
			if !sendCmd(conn, fmt.Sprintf("DAT %s %s", gameKind, line)) {
				log.Printf("Lost connection to server")
				return
			}
		}
	}
}

func scanInto(scanner *bufio.Scanner, out chan<- string) {
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}
