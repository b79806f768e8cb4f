// tokengen 给联调用：按网关配置的密钥为某个用户签一枚访问令牌。
// 真正的身份签发在外部账号服务里，这里只是开发期工具。
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"PChat/global"
	"PChat/tools/security"
)

func main() {
	cfgPath := flag.String("config", "", "yaml config path")
	user := flag.String("user", "", "user id to sign the token for")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: tokengen -user <id> [-config path] [-ttl 24h]")
		os.Exit(2)
	}
	if err := global.Load(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	opts := security.DefaultOptions(global.JWTSecret())
	opts.TTL = *ttl
	token, exp, err := security.Generate(opts, *user)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n# expires %s\n", token, exp.Format(time.RFC3339))
}
