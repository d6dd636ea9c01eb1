package handlers

import (
	"fmt"
	"strings"

	"whatsapp-reminders/models"
)

// Testi inviati agli utenti. Il bot parla portoghese (pt-BR).

var frequencyNames = map[models.Frequency]string{
	models.FrequencyOnce:    "única vez",
	models.FrequencyDaily:   "diariamente",
	models.FrequencyWeekly:  "semanalmente",
	models.FrequencyMonthly: "mensalmente",
}

// FrequencyName restituisce il nome localizzato della frequenza
func FrequencyName(f models.Frequency) string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return string(f)
}

// FireNowMessage è la notifica principale, all'orario del reminder
func FireNowMessage(r *models.Reminder) string {
	return fmt.Sprintf("🔔 *LEMBRETE*: %s\n⏰ Horário: %s\n🔄 Frequência: %s\n🆔 ID: %s",
		r.Text, r.Time, FrequencyName(r.Frequency), r.ID)
}

// DayBeforeMessage è l'avviso inviato il giorno prima
func DayBeforeMessage(r *models.Reminder) string {
	return fmt.Sprintf("⚠️ *LEMBRETE PARA AMANHÃ*: %s\n⏰ Horário: %s\n📆 Data: %s\n🆔 ID: %s",
		r.Text, r.Time, r.Date.Local(), r.ID)
}

func confirmationMessage(r *models.Reminder) string {
	return fmt.Sprintf("✅ Lembrete criado com sucesso!\n"+
		"📝 *%s*\n"+
		"📆 Data: %s\n"+
		"⏰ Horário: %s\n"+
		"🔄 Frequência: %s\n"+
		"🆔 ID: %s\n\n"+
		"Para ver seus lembretes, digite /lembretes\n"+
		"Para marcar como concluído, use /concluir ID",
		r.Text, r.Date.Local(), r.Time, FrequencyName(r.Frequency), r.ID)
}

const notUnderstoodMessage = "Não entendi como um lembrete. Tente algo como:\n\n" +
	"\"Reunião com cliente dia 15 de maio às 14:00\"\n" +
	"\"Todos os dias preciso tomar remédio às 8:00\"\n\n" +
	"Para ajuda, digite /ajuda"

const helpMessage = "*🤖 Bot de Lembretes - Comandos*\n\n" +
	"Para criar um lembrete, simplesmente envie uma mensagem descrevendo o evento, data e hora. Exemplos:\n\n" +
	"\"Reunião amanhã às 14:00\"\n" +
	"\"Consulta médica dia 15 de maio às 10:30\"\n" +
	"\"Todos os dias preciso tomar vitamina às 8:00\"\n\n" +
	"*Comandos disponíveis:*\n" +
	"/lembretes - Listar todos seus lembretes\n" +
	"/concluir ID - Marcar um lembrete como concluído\n" +
	"/deletar ID - Remover um lembrete\n" +
	"/ajuda - Mostrar esta mensagem de ajuda\n\n" +
	"No lugar do ID você pode usar o número mostrado em /lembretes."

const (
	noRemindersMessage      = "📝 Você não tem lembretes ativos."
	unknownCommandMessage   = "❓ Comando não reconhecido. Digite /ajuda para ver os comandos disponíveis."
	notFoundMessage         = "❌ Lembrete não encontrado. Verifique o ID e tente novamente."
	alreadyCompletedMessage = "ℹ️ Este lembrete já estava concluído."
	deletedMessage          = "🗑️ Lembrete removido com sucesso!"
	createFailedMessage     = "❌ Erro ao criar o lembrete. Tente novamente mais tarde."
	listFailedMessage       = "❌ Erro ao carregar seus lembretes. Tente novamente mais tarde."
	completeFailedMessage   = "❌ Erro ao marcar lembrete como concluído. Tente novamente mais tarde."
	deleteFailedMessage     = "❌ Erro ao remover lembrete. Tente novamente mais tarde."
)

func usageMessage(command string) string {
	return fmt.Sprintf("❌ Por favor, forneça o ID do lembrete. Exemplo: %s 123456", command)
}

func completedMessage(r *models.Reminder) string {
	return fmt.Sprintf("✅ Lembrete \"%s\" marcado como concluído!", r.Text)
}

func listMessage(reminders []*models.Reminder) string {
	var b strings.Builder
	b.WriteString("*📋 Seus Lembretes:*\n\n")
	for i, r := range reminders {
		status := "⏳"
		switch {
		case r.Completed():
			status = "✅"
		case r.Notified():
			status = "🔔"
		}
		fmt.Fprintf(&b, "%s *%d.* %s\n📆 Data: %s ⏰ Hora: %s\n🔄 Frequência: %s\n🆔 ID: %s\n\n",
			status, i+1, r.Text, r.Date.Local(), r.Time, FrequencyName(r.Frequency), r.ID)
	}
	b.WriteString("Para marcar como concluído, use /concluir ID\nPara remover, use /deletar ID")
	return b.String()
}
