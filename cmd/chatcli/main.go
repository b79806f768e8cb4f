// chatcli 终端客户端：连网关、跑同步引擎、把转写区和会话列表打到终端。
//
// 命令：
//
//	/dm <user> <text...>   发单聊
//	/ch <channel> <text>   发频道消息
//	/open dm <user>        打开单聊会话
//	/open ch <channel>     打开频道会话
//	/list                  打印会话列表
//	/quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"PChat/client"
	"PChat/client/sync"
	"PChat/module/chat/model"

	"github.com/golang/glog"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "gateway base url")
	token := flag.String("token", "", "access token (see cmd/tokengen)")
	user := flag.String("user", "", "own user id")
	flag.Parse()

	if *token == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -user <id> -token <jwt> [-server url]")
		os.Exit(2)
	}

	rest := client.NewRest(*server, *token)
	engine := sync.NewEngine(*user, rest, render)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := client.Dial(dialCtx, *server, *token, engine)
	dialCancel()
	if err != nil {
		glog.Exitf("dial: %v", err)
	}
	defer conn.Close()
	fmt.Println("connected; /open dm <user> to start")

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := handle(line, *user, conn, engine); err != nil {
			fmt.Println("!", err)
		}
		select {
		case <-conn.Done():
			fmt.Println("connection lost")
			return
		default:
		}
	}
}

func handle(line, self string, conn *client.Conn, engine *sync.Engine) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/dm", "/ch":
		if len(fields) < 3 {
			return fmt.Errorf("usage: %s <id> <text>", fields[0])
		}
		in := &model.MessageIntent{
			Sender:  self,
			Type:    model.MessageText,
			Content: strings.Join(fields[2:], " "),
		}
		if fields[0] == "/dm" {
			in.Recipient = fields[1]
			if err := conn.SendDirect(in); err != nil {
				return err
			}
			// 单聊服务端只投对端，自己这端乐观回显
			engine.Echo(in)
			return nil
		}
		in.ChannelID = fields[1]
		return conn.SendChannel(in)

	case "/open":
		if len(fields) != 3 {
			return fmt.Errorf("usage: /open dm|ch <id>")
		}
		sel := sync.Selection{ID: fields[2]}
		switch fields[1] {
		case "dm":
			sel.Kind = sync.KindContact
		case "ch":
			sel.Kind = sync.KindChannel
		default:
			return fmt.Errorf("unknown conversation kind %q", fields[1])
		}
		engine.Select(sel)
		return nil

	case "/list":
		// 渲染回调里已经在打印，这里主动触发一次空转即可
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

// render 引擎每消化完一个事件回调一次（引擎协程内，状态只读）。
func render(st *sync.State) {
	if st.Selection.IsNone() {
		return
	}
	fmt.Printf("\n== %s ==\n", st.Selection.ID)
	for _, m := range st.Transcript {
		ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
		fmt.Printf("[%s] %s: %s\n", ts, m.Sender, m.Preview())
	}
	if len(st.Contacts) > 0 {
		fmt.Print("contacts:")
		for _, e := range st.Contacts {
			fmt.Printf(" %s(%s)", e.ID, e.Preview)
		}
		fmt.Println()
	}
	if len(st.Channels) > 0 {
		fmt.Print("channels:")
		for _, e := range st.Channels {
			fmt.Printf(" %s(%s)", e.ID, e.Preview)
		}
		fmt.Println()
	}
}
