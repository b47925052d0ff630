// Package generation 持久化每个身份的 generation 计数
//
// 计数文件位于数据目录下，名为 <DiceAddress>.generation，内容为十进制整数。
// 启动时读取一次并立即写回递增后的值，同一身份跨重启的记录因此总能排在旧记录之后。
// 文件旁的 .lock 文件用 flock 保护，阻止两个进程同时使用同一身份。
package generation
